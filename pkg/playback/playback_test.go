package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "VoiceBank/pkg/errors"
)

// fakePlayer records every operation applied to the shared output.
type fakePlayer struct {
	mu sync.Mutex

	source   string
	playing  bool
	position time.Duration
	duration time.Duration
	volume   float64
	muted    bool

	playErr error
	pauses  int

	onEnded func()
	onError func(err error)
}

func (p *fakePlayer) SetSource(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = url
	p.position = 0
	return nil
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.playing = true
	return nil
}

func (p *fakePlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.pauses++
	return nil
}

func (p *fakePlayer) Seek(position time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = position
	return nil
}

func (p *fakePlayer) SetVolume(level float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = level
	return nil
}

func (p *fakePlayer) SetMuted(muted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
	return nil
}

func (p *fakePlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakePlayer) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *fakePlayer) OnEnded(fn func())          { p.onEnded = fn }
func (p *fakePlayer) OnError(fn func(err error)) { p.onError = fn }

func (p *fakePlayer) currentSource() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *fakePlayer) pauseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauses
}

func TestToggleSwitchesBetweenRecordings(t *testing.T) {
	p := &fakePlayer{duration: 10 * time.Second}
	m := NewMultiplexer(p, WithPollInterval(time.Hour))
	defer m.Close()

	require.NoError(t, m.Toggle("r1", "https://cdn.example.com/r1.wav"))
	assert.Equal(t, "r1", m.NowPlaying())
	assert.Equal(t, "https://cdn.example.com/r1.wav", p.currentSource())

	// Switching pauses r1 first; only r2 plays afterwards.
	require.NoError(t, m.Toggle("r2", "https://cdn.example.com/r2.wav"))
	assert.Equal(t, "r2", m.NowPlaying())
	assert.Equal(t, "https://cdn.example.com/r2.wav", p.currentSource())
	assert.Equal(t, 1, p.pauseCount())

	snap := m.Snapshot()
	assert.Equal(t, time.Duration(0), snap.Position, "position resets on switch")
}

func TestToggleSameIDPauses(t *testing.T) {
	p := &fakePlayer{}
	m := NewMultiplexer(p, WithPollInterval(time.Hour))
	defer m.Close()

	require.NoError(t, m.Toggle("r1", "/r1.wav"))
	require.NoError(t, m.Toggle("r1", "/r1.wav"))
	assert.Empty(t, m.NowPlaying())
	assert.Equal(t, 1, p.pauseCount())

	// Restart requires a third toggle.
	require.NoError(t, m.Toggle("r1", "/r1.wav"))
	assert.Equal(t, "r1", m.NowPlaying())
}

func TestTogglePlayFailureLeavesNothingPlaying(t *testing.T) {
	p := &fakePlayer{playErr: errs.New("decode failure")}
	m := NewMultiplexer(p, WithPollInterval(time.Hour))
	defer m.Close()

	err := m.Toggle("r1", "/r1.wav")
	require.Error(t, err)
	assert.Equal(t, errs.CodePlayback, errs.GetCode(err))
	assert.Empty(t, m.NowPlaying())
}

func TestSeekClampsToDuration(t *testing.T) {
	p := &fakePlayer{duration: 10 * time.Second}
	m := NewMultiplexer(p, WithPollInterval(time.Hour))
	defer m.Close()

	require.Error(t, m.Seek(time.Second), "seek with nothing playing is rejected")

	require.NoError(t, m.Toggle("r1", "/r1.wav"))

	require.NoError(t, m.Seek(25*time.Second))
	assert.Equal(t, 10*time.Second, p.Position())

	require.NoError(t, m.Seek(-time.Second))
	assert.Equal(t, time.Duration(0), p.Position())

	require.NoError(t, m.Seek(4*time.Second))
	assert.Equal(t, 4*time.Second, p.Position())
	assert.Equal(t, 4*time.Second, m.Snapshot().Position)
}

func TestVolumeMuteRoundTrip(t *testing.T) {
	p := &fakePlayer{}
	m := NewMultiplexer(p, WithPollInterval(time.Hour))
	defer m.Close()

	require.NoError(t, m.SetVolume(0.7))
	snap := m.Snapshot()
	assert.Equal(t, 0.7, snap.Volume)
	assert.False(t, snap.Muted)

	// Zero volume implies muted.
	require.NoError(t, m.SetVolume(0))
	snap = m.Snapshot()
	assert.True(t, snap.Muted)
	assert.Equal(t, 0.0, snap.Volume)

	// Unmute restores the last non-zero level exactly.
	require.NoError(t, m.ToggleMute())
	snap = m.Snapshot()
	assert.False(t, snap.Muted)
	assert.Equal(t, 0.7, snap.Volume)

	require.NoError(t, m.ToggleMute())
	assert.True(t, m.Snapshot().Muted)
	require.NoError(t, m.ToggleMute())
	assert.Equal(t, 0.7, m.Snapshot().Volume)

	// A positive level while muted clears the mute.
	require.NoError(t, m.SetVolume(0))
	require.NoError(t, m.SetVolume(0.3))
	snap = m.Snapshot()
	assert.False(t, snap.Muted)
	assert.Equal(t, 0.3, snap.Volume)
}

func TestNaturalEndClearsNowPlaying(t *testing.T) {
	p := &fakePlayer{duration: 5 * time.Second}
	m := NewMultiplexer(p, WithPollInterval(time.Hour))
	defer m.Close()

	require.NoError(t, m.Toggle("r1", "/r1.wav"))
	p.onEnded()

	snap := m.Snapshot()
	assert.Empty(t, snap.NowPlaying)
	assert.Equal(t, time.Duration(0), snap.Position)
	assert.Equal(t, 5*time.Second, snap.Duration, "duration survives a natural end")
}

func TestPlaybackErrorResetsEverything(t *testing.T) {
	p := &fakePlayer{duration: 5 * time.Second}

	var received error
	errBeforeReset := false
	m := NewMultiplexer(p,
		WithPollInterval(time.Hour),
		WithErrorFunc(func(err error) { received = err }),
		WithStateFunc(func(s Snapshot) {
			if s.NowPlaying == "" {
				errBeforeReset = received != nil
			}
		}))
	defer m.Close()

	require.NoError(t, m.Toggle("r1", "/r1.wav"))
	p.onError(errs.New("network stall"))

	snap := m.Snapshot()
	assert.Empty(t, snap.NowPlaying)
	assert.Equal(t, time.Duration(0), snap.Position)
	assert.Equal(t, time.Duration(0), snap.Duration)

	// The failure reaches the registered observer as a playback error, and
	// it does so before the state reset becomes visible, so a consumer that
	// waits on the empty now-playing state never misses it.
	require.Error(t, received)
	assert.Equal(t, errs.CodePlayback, errs.GetCode(received))
	assert.Contains(t, received.Error(), "network stall")
	assert.True(t, errBeforeReset)
}

func TestErrorCallbackKeepsExistingCode(t *testing.T) {
	p := &fakePlayer{duration: 5 * time.Second}

	var received error
	m := NewMultiplexer(p,
		WithPollInterval(time.Hour),
		WithErrorFunc(func(err error) { received = err }))
	defer m.Close()

	require.NoError(t, m.Toggle("r1", "/r1.wav"))
	p.onError(errs.WithCode(errs.CodePlayback, "decode failed mid-stream"))

	require.Error(t, received)
	assert.Equal(t, errs.CodePlayback, errs.GetCode(received))
	assert.Equal(t, "decode failed mid-stream", received.Error())

	// A second error with nothing playing must not fire the callback again.
	received = nil
	p.onError(errs.New("late event"))
	assert.NoError(t, received)
}

func TestRelativeURLResolution(t *testing.T) {
	p := &fakePlayer{}
	m := NewMultiplexer(p,
		WithPollInterval(time.Hour),
		WithBaseURL("https://api.example.com/"))
	defer m.Close()

	require.NoError(t, m.Toggle("r1", "/uploads/r1.wav"))
	assert.Equal(t, "https://api.example.com/uploads/r1.wav", p.currentSource())

	require.NoError(t, m.Toggle("r2", "https://cdn.other.com/r2.wav"))
	assert.Equal(t, "https://cdn.other.com/r2.wav", p.currentSource(), "absolute url passes through")
}

func TestPollingUpdatesPosition(t *testing.T) {
	p := &fakePlayer{duration: 10 * time.Second}

	var mu sync.Mutex
	var last Snapshot
	m := NewMultiplexer(p,
		WithPollInterval(5*time.Millisecond),
		WithStateFunc(func(s Snapshot) {
			mu.Lock()
			last = s
			mu.Unlock()
		}))
	defer m.Close()

	require.NoError(t, m.Toggle("r1", "/r1.wav"))
	p.Seek(2 * time.Second) // simulate advancing playback

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.Position == 2*time.Second
	}, time.Second, 5*time.Millisecond)

	// Pausing stops the poll loop.
	require.NoError(t, m.Toggle("r1", "/r1.wav"))
	p.Seek(7 * time.Second)
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	assert.NotEqual(t, 7*time.Second, last.Position, "poll must stop once nothing is playing")
	mu.Unlock()
}
