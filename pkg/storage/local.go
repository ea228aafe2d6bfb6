package stores

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"VoiceBank/pkg/util"
)

// LocalStore 本地磁盘存储，对象键映射为相对路径
type LocalStore struct {
	Dir     string `env:"UPLOAD_DIR"`
	BaseURL string `env:"UPLOAD_PUBLIC_BASE"` // 为空时返回 /uploads/<key>
}

func NewLocalStore(dir string) *LocalStore {
	if dir == "" {
		dir = util.GetEnvDefault("UPLOAD_DIR", "uploads")
	}
	return &LocalStore{
		Dir:     dir,
		BaseURL: util.GetEnv("UPLOAD_PUBLIC_BASE"),
	}
}

func (l *LocalStore) path(key string) string {
	return filepath.Join(l.Dir, filepath.FromSlash(key))
}

func (l *LocalStore) Read(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	f, err := os.Open(l.path(key))
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}

func (l *LocalStore) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	p := l.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return err
	}
	return f.Close()
}

func (l *LocalStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (l *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(l.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	root := l.Dir
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	return keys, err
}

func (l *LocalStore) PublicURL(key string) string {
	if l.BaseURL != "" {
		return strings.TrimRight(l.BaseURL, "/") + "/" + key
	}
	return "/uploads/" + key
}
