// samplectl 命令行工具：录制并上传语音样本，管理已上传的录音。
// 身份令牌从 VOICEBANK_TOKEN 环境变量读取。
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"VoiceBank/pkg/capture"
	"VoiceBank/pkg/client"
	"VoiceBank/pkg/playback"
	"VoiceBank/pkg/session"
)

func main() {
	baseURL := flag.String("api", envDefault("VOICEBANK_API", "http://localhost:8080"), "API base URL")
	flag.Parse()

	tokens := session.TokenProviderFunc(func(context.Context) (string, error) {
		return os.Getenv("VOICEBANK_TOKEN"), nil
	})
	api := client.New(*baseURL, tokens)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	var err error
	switch args[0] {
	case "record":
		err = cmdRecord(ctx, api, args[1:])
	case "list":
		err = cmdList(ctx, api, args[1:])
	case "play":
		err = cmdPlay(ctx, api, *baseURL, args[1:])
	case "delete":
		err = cmdDelete(ctx, api, args[1:])
	case "profile":
		err = cmdProfile(ctx, api, args[1:])
	case "sync":
		err = api.SyncProfile(ctx)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: samplectl [-api URL] <command>

commands:
  record  -title T -script S [-desc D] [-seconds N] [-pcm FILE]   录制并上传
  list    -user USER_ID                                           列出录音
  play    -id ID                                                  播放一条录音
  delete  -id ID [-yes]                                           删除录音（默认需确认）
  profile [-name NAME] [-email EMAIL]                             查看或完善档案
  sync                                                            登录后同步档案`)
}

// cmdRecord 录 N 秒（或回放 PCM 文件）并上传
func cmdRecord(ctx context.Context, api *client.Client, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	title := fs.String("title", "", "recording title")
	script := fs.String("script", "", "script text being read")
	desc := fs.String("desc", "", "optional description")
	seconds := fs.Int("seconds", 5, "recording length in seconds")
	pcmFile := fs.String("pcm", "", "raw LINEAR16 PCM file to use instead of the microphone")
	fs.Parse(args)

	var input capture.Input
	if *pcmFile != "" {
		input = &capture.PCMFileInput{Path: *pcmFile}
	} else {
		input = capture.NewToneInput()
	}

	ctl := capture.NewController(input, capture.WithElapsedFunc(func(s int) {
		fmt.Printf("\rrecording... %ds", s)
	}))
	if err := ctl.RequestPermission(ctx); err != nil {
		return err
	}
	if err := ctl.Start(ctx); err != nil {
		return err
	}
	time.Sleep(time.Duration(*seconds) * time.Second)
	blob, err := ctl.Stop()
	fmt.Println()
	// Clear even when Stop fails: a partial blob may still hold a transient
	// ref that would otherwise leak.
	defer ctl.Clear()
	if err != nil {
		return err
	}

	rec, err := api.Upload(ctx, client.UploadRequest{
		Title:       *title,
		Description: *desc,
		ScriptText:  *script,
	}, blob)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %s (%d bytes) -> %s\n", rec.ID, blob.Size(), rec.AudioURL)
	return nil
}

func cmdList(ctx context.Context, api *client.Client, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	user := fs.String("user", "", "owner user id")
	fs.Parse(args)

	recordings, err := api.ListByOwner(ctx, *user)
	if err != nil {
		return err
	}
	for _, r := range recordings {
		fmt.Printf("%s  %-30s  %s\n", r.ID, r.Title, r.CreatedAt.Format(time.RFC3339))
	}
	fmt.Printf("%d recording(s)\n", len(recordings))
	return nil
}

// cmdPlay 无声播放：按真实时长推进进度条，验证服务端音频可达
func cmdPlay(ctx context.Context, api *client.Client, baseURL string, args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	id := fs.String("id", "", "recording id")
	fs.Parse(args)

	rec, err := api.Get(ctx, *id)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	var playErr error
	mux := playback.NewMultiplexer(playback.NewClockPlayer(),
		playback.WithBaseURL(baseURL),
		playback.WithErrorFunc(func(err error) { playErr = err }),
		playback.WithStateFunc(func(s playback.Snapshot) {
			if s.NowPlaying == "" {
				select {
				case <-done:
				default:
					close(done)
				}
				return
			}
			fmt.Printf("\r%s  %v / %v", rec.Title, s.Position.Round(time.Second), s.Duration.Round(time.Second))
		}))
	defer mux.Close()

	if err := mux.Toggle(rec.ID, rec.AudioURL); err != nil {
		return err
	}
	<-done
	fmt.Println()
	if playErr != nil {
		return playErr
	}
	fmt.Println("done")
	return nil
}

func cmdDelete(ctx context.Context, api *client.Client, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "recording id")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	fs.Parse(args)

	// 删除不可恢复，默认需要交互确认
	if !*yes && !confirm(os.Stdin, os.Stdout, fmt.Sprintf("delete recording %s? This cannot be undone.", *id)) {
		fmt.Println("aborted")
		return nil
	}

	if err := api.Remove(ctx, *id); err != nil {
		return err
	}
	fmt.Println("deleted", *id)
	return nil
}

// confirm prompts on out and reads a single line from in. Only an explicit
// "y" or "yes" counts as consent.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	var answer string
	if _, err := fmt.Fscanln(in, &answer); err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// cmdProfile 不带参数时查看档案，带参数时创建或更新
func cmdProfile(ctx context.Context, api *client.Client, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	fs.Parse(args)

	profile, found, err := api.FetchProfile(ctx)
	if err != nil {
		return err
	}

	if *name == "" && *email == "" {
		if !found {
			fmt.Println("no profile yet; create one with: samplectl profile -name ...")
			return nil
		}
		fmt.Printf("id:       %s\nname:     %s\nemail:    %s\ncomplete: %v\n",
			profile.ID, profile.FullName, profile.Email, profile.IsComplete())
		return nil
	}

	if !found {
		created, outcome, err := api.CreateProfile(ctx, "", *email, *name)
		if err != nil {
			return err
		}
		if outcome == client.AlreadyExists {
			fmt.Println("profile already exists")
			return nil
		}
		fmt.Println("profile created:", created.FullName)
		return nil
	}

	updated, err := api.UpdateProfile(ctx, *name, *email)
	if err != nil {
		return err
	}
	fmt.Println("profile updated:", updated.FullName)
	return nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
