// Package playback multiplexes per-recording transport controls over exactly
// one underlying audio output. Platforms do not decode many streams at once
// well, and only one recording should be audible at a time, so every list
// item shares this single resource.
package playback

import (
	"net/url"
	"strings"
	"sync"
	"time"

	errs "VoiceBank/pkg/errors"
)

// Player is the single audio output resource. Implementations wrap whatever
// the platform provides; the multiplexer is its exclusive owner.
type Player interface {
	SetSource(url string) error
	Play() error
	Pause() error
	Seek(position time.Duration) error
	SetVolume(level float64) error
	SetMuted(muted bool) error
	Position() time.Duration
	Duration() time.Duration

	// OnEnded registers the natural end-of-track callback. OnError fires on
	// decode or network failure mid-playback. Neither is guaranteed to fire
	// on every platform, which is why the multiplexer polls too.
	OnEnded(fn func())
	OnError(fn func(err error))
}

// Snapshot is the observable playback state at one instant.
type Snapshot struct {
	NowPlaying string        `json:"now_playing"`
	Position   time.Duration `json:"position"`
	Duration   time.Duration `json:"duration"`
	Volume     float64       `json:"volume"`
	Muted      bool          `json:"muted"`
}

type Option func(*Multiplexer)

// WithPollInterval overrides the position poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(m *Multiplexer) { m.pollEvery = d }
}

// WithBaseURL sets the API base used to resolve relative audio URLs.
func WithBaseURL(base string) Option {
	return func(m *Multiplexer) { m.baseURL = strings.TrimRight(base, "/") }
}

// WithStateFunc registers a callback invoked whenever the snapshot changes,
// for progress-bar rendering.
func WithStateFunc(fn func(Snapshot)) Option {
	return func(m *Multiplexer) { m.onState = fn }
}

// WithErrorFunc registers a callback invoked when playback fails mid-stream,
// so the failure can be surfaced to the user instead of looking like a stop.
func WithErrorFunc(fn func(err error)) Option {
	return func(m *Multiplexer) { m.onError = fn }
}

// Multiplexer guarantees at most one now-playing recording id at any instant
// by always pausing the previous source before switching.
type Multiplexer struct {
	mu sync.Mutex

	player    Player
	baseURL   string
	pollEvery time.Duration
	onState   func(Snapshot)
	onError   func(err error)

	nowPlaying string
	position   time.Duration
	duration   time.Duration
	volume     float64
	lastVolume float64
	muted      bool
	closed     bool

	pollStop chan struct{}
}

func NewMultiplexer(player Player, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		player:     player,
		pollEvery:  100 * time.Millisecond,
		volume:     1,
		lastVolume: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	player.OnEnded(m.handleEnded)
	player.OnError(m.handleError)
	return m
}

// Toggle starts, switches or pauses playback for a recording. Toggling the
// id that is already playing pauses it; toggling anything else pauses the
// current item first, then starts the new one.
func (m *Multiplexer) Toggle(recordingID, sourceURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errs.New("playback multiplexer closed")
	}

	if m.nowPlaying == recordingID {
		m.stopPollingLocked()
		m.nowPlaying = ""
		if err := m.player.Pause(); err != nil {
			return errs.WrapCode(errs.CodePlayback, err, "pause playback")
		}
		m.notifyLocked()
		return nil
	}

	if m.nowPlaying != "" {
		m.stopPollingLocked()
		m.nowPlaying = ""
		if err := m.player.Pause(); err != nil {
			m.notifyLocked()
			return errs.WrapCode(errs.CodePlayback, err, "pause previous recording")
		}
	}

	m.position = 0
	m.duration = 0

	src, err := m.resolveURL(sourceURL)
	if err != nil {
		m.notifyLocked()
		return errs.WrapCode(errs.CodePlayback, err, "resolve audio url")
	}
	if err := m.player.SetSource(src); err != nil {
		m.notifyLocked()
		return errs.WrapCode(errs.CodePlayback, err, "assign audio source")
	}
	if err := m.player.Play(); err != nil {
		// 播放失败不设置 now-playing
		m.notifyLocked()
		return errs.WrapCode(errs.CodePlayback, err, "start playback")
	}

	m.nowPlaying = recordingID
	m.duration = m.player.Duration()
	m.startPollingLocked()
	m.notifyLocked()
	return nil
}

// Seek jumps directly to a position, clamped to [0, duration]. Valid only
// while something is playing.
func (m *Multiplexer) Seek(position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nowPlaying == "" {
		return errs.New("nothing is playing")
	}

	if position < 0 {
		position = 0
	}
	if d := m.player.Duration(); d > 0 && position > d {
		position = d
	}
	if err := m.player.Seek(position); err != nil {
		return errs.WrapCode(errs.CodePlayback, err, "seek")
	}
	m.position = position
	m.notifyLocked()
	return nil
}

// SetVolume sets the level in [0,1]. Zero implies muted; a positive level
// clears mute and becomes the new restore point.
func (m *Multiplexer) SetVolume(level float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	m.volume = level
	if level == 0 {
		m.muted = true
	} else {
		m.lastVolume = level
		m.muted = false
	}

	if err := m.player.SetVolume(level); err != nil {
		return errs.WrapCode(errs.CodePlayback, err, "set volume")
	}
	if err := m.player.SetMuted(m.muted); err != nil {
		return errs.WrapCode(errs.CodePlayback, err, "set muted")
	}
	m.notifyLocked()
	return nil
}

// ToggleMute swaps between silence and the last non-zero volume. The stored
// volume level survives the round trip exactly.
func (m *Multiplexer) ToggleMute() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.muted {
		m.muted = false
		m.volume = m.lastVolume
	} else {
		if m.volume > 0 {
			m.lastVolume = m.volume
		}
		m.muted = true
		m.volume = 0
	}

	if err := m.player.SetVolume(m.volume); err != nil {
		return errs.WrapCode(errs.CodePlayback, err, "set volume")
	}
	if err := m.player.SetMuted(m.muted); err != nil {
		return errs.WrapCode(errs.CodePlayback, err, "set muted")
	}
	m.notifyLocked()
	return nil
}

// NowPlaying reports the single recording id currently driving the output,
// empty when nothing plays.
func (m *Multiplexer) NowPlaying() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nowPlaying
}

func (m *Multiplexer) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Close halts playback and the poll loop. The multiplexer cannot be reused.
func (m *Multiplexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.stopPollingLocked()
	if m.nowPlaying != "" {
		m.nowPlaying = ""
		return m.player.Pause()
	}
	return nil
}

func (m *Multiplexer) snapshotLocked() Snapshot {
	return Snapshot{
		NowPlaying: m.nowPlaying,
		Position:   m.position,
		Duration:   m.duration,
		Volume:     m.volume,
		Muted:      m.muted,
	}
}

func (m *Multiplexer) notifyLocked() {
	if m.onState != nil {
		m.onState(m.snapshotLocked())
	}
}

// handleEnded clears now-playing when a track finishes on its own.
func (m *Multiplexer) handleEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nowPlaying == "" {
		return
	}
	m.stopPollingLocked()
	m.nowPlaying = ""
	m.position = 0
	m.notifyLocked()
}

// handleError additionally wipes the duration: a mid-stream decode failure
// leaves nothing worth displaying. The failure is forwarded to the error
// callback so the user sees it as a failure, not a stop.
func (m *Multiplexer) handleError(err error) {
	m.mu.Lock()
	if m.nowPlaying == "" {
		m.mu.Unlock()
		return
	}
	m.stopPollingLocked()
	m.nowPlaying = ""
	m.position = 0
	m.duration = 0
	snap := m.snapshotLocked()
	report := m.onError
	notify := m.onState
	m.mu.Unlock()

	// Report before the state reset is observable, so a consumer waiting on
	// the empty now-playing state always sees the error first.
	if report != nil {
		if errs.GetCode(err) != errs.CodePlayback {
			err = errs.WrapCode(errs.CodePlayback, err, "playback failed")
		}
		report(err)
	}
	if notify != nil {
		notify(snap)
	}
}

// startPollingLocked begins the position poll. Native position notifications
// are unreliable on some platforms, so the loop runs whenever a track is
// playing and only then.
func (m *Multiplexer) startPollingLocked() {
	m.stopPollingLocked()
	stop := make(chan struct{})
	m.pollStop = stop

	go func() {
		t := time.NewTicker(m.pollEvery)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				m.mu.Lock()
				if m.pollStop != stop || m.nowPlaying == "" {
					m.mu.Unlock()
					return
				}
				m.position = m.player.Position()
				if d := m.player.Duration(); d > 0 {
					m.duration = d
				}
				m.notifyLocked()
				m.mu.Unlock()
			}
		}
	}()
}

func (m *Multiplexer) stopPollingLocked() {
	if m.pollStop != nil {
		close(m.pollStop)
		m.pollStop = nil
	}
}

// resolveURL makes a relative audio path absolute against the API base.
func (m *Multiplexer) resolveURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || m.baseURL == "" {
		return raw, nil
	}
	if strings.HasPrefix(raw, "/") {
		return m.baseURL + raw, nil
	}
	return m.baseURL + "/" + raw, nil
}
