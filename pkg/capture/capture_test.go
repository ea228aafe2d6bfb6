package capture

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "VoiceBank/pkg/errors"
)

// fakeInput is a hand-driven microphone for tests.
type fakeInput struct {
	mu       sync.Mutex
	denyPerm bool
	startErr error
	stopErr  error
	ch       chan []byte
	stopped  int
}

func (f *fakeInput) RequestPermission(ctx context.Context) error {
	if f.denyPerm {
		return errs.WithCode(errs.CodePermissionDenied, "denied by user")
	}
	return nil
}

func (f *fakeInput) Start(ctx context.Context) (<-chan []byte, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch = make(chan []byte, 16)
	return f.ch, nil
}

func (f *fakeInput) push(data []byte) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	ch <- data
}

func (f *fakeInput) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}
	return f.stopErr
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestControllerPermission(t *testing.T) {
	in := &fakeInput{denyPerm: true}
	c := NewController(in)

	err := c.RequestPermission(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.CodePermissionDenied, errs.GetCode(err))

	// Start without a grant must not touch the device.
	err = c.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.CodePermissionDenied, errs.GetCode(err))
	assert.Equal(t, StateIdle, c.State())

	// Denial is retryable.
	in.denyPerm = false
	require.NoError(t, c.RequestPermission(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateRecording, c.State())
	_, err = c.Stop()
	require.NoError(t, err)
}

func TestControllerRecordStopClear(t *testing.T) {
	in := &fakeInput{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := NewController(in, WithClock(clock.Now))

	require.NoError(t, c.RequestPermission(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateRecording, c.State())

	pcm := make([]byte, 3200)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(i))
	}
	in.push(pcm[:1600])
	in.push(pcm[1600:])

	clock.Advance(3 * time.Second)
	assert.Equal(t, 3, c.ElapsedSeconds())

	blob, err := c.Stop()
	require.NoError(t, err)
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 1, in.stopped, "device released exactly once")

	// The counter freezes at the stop value.
	clock.Advance(10 * time.Second)
	assert.Equal(t, 3, c.ElapsedSeconds())

	require.NotNil(t, blob)
	assert.True(t, blob.HasAudio())
	assert.Equal(t, "audio/wav", blob.ContentType())
	assert.Equal(t, int64(wavHeaderSize+len(pcm)), blob.Size())

	data := blob.Bytes()
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, pcm, data[wavHeaderSize:])

	// Starting again without clearing is rejected.
	require.Error(t, c.Start(context.Background()))

	ref := blob.Ref()
	assert.NotEmpty(t, ref)
	got, ok := Resolve(ref)
	require.True(t, ok)
	assert.Equal(t, data, got)

	require.NoError(t, c.Clear())
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, c.ElapsedSeconds())
	assert.Nil(t, c.Blob())
	_, ok = Resolve(ref)
	assert.False(t, ok, "reference revoked after clear")
	assert.Empty(t, blob.Ref())
}

func TestControllerStartWhileRecording(t *testing.T) {
	in := &fakeInput{}
	c := NewController(in)

	require.NoError(t, c.RequestPermission(context.Background()))
	require.NoError(t, c.Start(context.Background()))

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateRecording, c.State())
	assert.Equal(t, 0, in.stopped, "second start must not disturb the live session")

	_, err = c.Stop()
	require.NoError(t, err)
}

func TestControllerStartFailureLeavesIdle(t *testing.T) {
	in := &fakeInput{startErr: errs.New("device busy")}
	c := NewController(in)

	require.NoError(t, c.RequestPermission(context.Background()))
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, c.ElapsedSeconds())

	// Recoverable: a later start succeeds.
	in.startErr = nil
	require.NoError(t, c.Start(context.Background()))
	_, err = c.Stop()
	require.NoError(t, err)
}

func TestControllerStopReleasesDeviceOnError(t *testing.T) {
	in := &fakeInput{stopErr: errs.New("teardown failed")}
	c := NewController(in)

	require.NoError(t, c.RequestPermission(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	in.push([]byte{1, 2, 3, 4})

	blob, err := c.Stop()
	require.Error(t, err)
	require.NotNil(t, blob, "blob still produced when device teardown errors")
	assert.Equal(t, 1, in.stopped)
	assert.Equal(t, StateStopped, c.State())

	// The partial blob holds a live ref, so callers must still Clear after
	// an errored Stop or the ref leaks.
	ref := blob.Ref()
	_, ok := Resolve(ref)
	assert.True(t, ok)
	require.NoError(t, c.Clear())
	_, ok = Resolve(ref)
	assert.False(t, ok, "ref must be revoked by Clear")
}

func TestControllerStopWithoutSession(t *testing.T) {
	c := NewController(&fakeInput{})
	_, err := c.Stop()
	require.Error(t, err)
}

func TestControllerClearWhileRecording(t *testing.T) {
	in := &fakeInput{}
	c := NewController(in)

	require.NoError(t, c.RequestPermission(context.Background()))
	require.NoError(t, c.Start(context.Background()))

	require.Error(t, c.Clear())
	assert.Equal(t, StateRecording, c.State())

	_, err := c.Stop()
	require.NoError(t, err)
	require.NoError(t, c.Clear())
}

func TestControllerEmptyRecording(t *testing.T) {
	in := &fakeInput{}
	c := NewController(in)

	require.NoError(t, c.RequestPermission(context.Background()))
	require.NoError(t, c.Start(context.Background()))

	blob, err := c.Stop()
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.False(t, blob.HasAudio(), "header-only WAV carries no audio")
	assert.Equal(t, int64(wavHeaderSize), blob.Size())
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 32000) // 1s @ 16kHz mono
	data := encodeWAV(pcm, 16000, 1)

	require.Equal(t, wavHeaderSize+len(pcm), len(data))
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "WAVEfmt ", string(data[8:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]), "PCM format tag")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]), "channels")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(data[28:32]), "byte rate")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[32:34]), "block align")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]), "bits per sample")
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(data[40:44]))
}

func TestToneInput(t *testing.T) {
	in := NewToneInput()
	require.NoError(t, in.RequestPermission(context.Background()))

	ch, err := in.Start(context.Background())
	require.NoError(t, err)

	select {
	case chunk := <-ch:
		assert.NotEmpty(t, chunk)
		assert.Equal(t, 0, len(chunk)%bytesPerSample)
	case <-time.After(2 * time.Second):
		t.Fatal("no chunk produced")
	}

	require.NoError(t, in.Stop())
	for range ch {
	}
}
