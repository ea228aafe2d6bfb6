// Package capture wraps microphone acquisition and recording into a
// start/stop controller producing a finished WAV blob. At most one capture
// session exists per controller; the input device is released on every exit
// path so it is never left held after a stop or a failure.
package capture

import (
	"context"
	"sync"
	"time"

	errs "VoiceBank/pkg/errors"
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1

	bytesPerSample = 2 // LINEAR16
)

// State is the capture session lifecycle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopped // stopped with data, blob available
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Input abstracts the platform microphone. Start begins delivery of raw PCM
// chunks on the returned channel; Stop releases the device and closes the
// channel.
type Input interface {
	RequestPermission(ctx context.Context) error
	Start(ctx context.Context) (<-chan []byte, error)
	Stop() error
}

// Controller drives one capture session at a time.
type Controller struct {
	mu sync.Mutex

	input      Input
	sampleRate int
	channels   int

	granted bool
	state   State
	chunks  [][]byte
	blob    *Blob

	startTime time.Time
	stoppedAt int // elapsed seconds frozen at Stop

	clock     func() time.Time
	onElapsed func(seconds int)

	drainDone  chan struct{}
	tickerStop chan struct{}
}

type Option func(*Controller)

// WithClock injects a clock; defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithFormat overrides the PCM format of the input.
func WithFormat(sampleRate, channels int) Option {
	return func(c *Controller) {
		c.sampleRate = sampleRate
		c.channels = channels
	}
}

// WithElapsedFunc registers a callback invoked once per second while
// recording, for progress display.
func WithElapsedFunc(fn func(seconds int)) Option {
	return func(c *Controller) { c.onElapsed = fn }
}

func NewController(input Input, opts ...Option) *Controller {
	c := &Controller{
		input:      input,
		sampleRate: DefaultSampleRate,
		channels:   DefaultChannels,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestPermission asks the platform for microphone access. Until it
// succeeds the controller cannot start; it may be retried after a denial.
func (c *Controller) RequestPermission(ctx context.Context) error {
	err := c.input.RequestPermission(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.granted = false
		if errs.GetCode(err) == errs.CodePermissionDenied {
			return err
		}
		return errs.WrapCode(errs.CodePermissionDenied, err, "microphone access denied")
	}
	c.granted = true
	return nil
}

// Start opens the input stream and begins buffering chunks. A failure to
// acquire the stream leaves the controller unchanged; no partial session is
// created.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRecording {
		return errs.New("capture session already recording")
	}
	if c.state == StateStopped {
		return errs.New("previous capture not cleared")
	}
	if !c.granted {
		return errs.WithCode(errs.CodePermissionDenied, "microphone permission not granted")
	}

	ch, err := c.input.Start(ctx)
	if err != nil {
		return errs.Wrap(err, "open audio input stream")
	}

	c.chunks = nil
	c.startTime = c.clock()
	c.state = StateRecording

	c.drainDone = make(chan struct{})
	go c.drain(ch)

	if c.onElapsed != nil {
		c.tickerStop = make(chan struct{})
		go c.tick(c.tickerStop)
	}
	return nil
}

// drain buffers incoming chunks until the input closes the channel.
func (c *Controller) drain(ch <-chan []byte) {
	defer close(c.drainDone)
	for data := range ch {
		if len(data) == 0 {
			continue
		}
		buf := make([]byte, len(data))
		copy(buf, data)
		c.mu.Lock()
		c.chunks = append(c.chunks, buf)
		c.mu.Unlock()
	}
}

func (c *Controller) tick(stop <-chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.onElapsed(c.ElapsedSeconds())
		}
	}
}

// Stop finalizes the buffered chunks into a single WAV blob, releases the
// input device and transitions to stopped-with-data. The device is stopped
// even when finalization has nothing to work with.
func (c *Controller) Stop() (*Blob, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return nil, errs.New("no active capture session")
	}
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
	elapsed := int(c.clock().Sub(c.startTime).Seconds())
	drainDone := c.drainDone
	c.mu.Unlock()

	// Stop the device first: closes the chunk channel, which ends the
	// drain goroutine.
	stopErr := c.input.Stop()
	<-drainDone

	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, chunk := range c.chunks {
		total += len(chunk)
	}
	pcm := make([]byte, 0, total)
	for _, chunk := range c.chunks {
		pcm = append(pcm, chunk...)
	}

	c.blob = newBlob(encodeWAV(pcm, c.sampleRate, c.channels))
	c.chunks = nil
	c.stoppedAt = elapsed
	c.state = StateStopped

	if stopErr != nil {
		return c.blob, errs.Wrap(stopErr, "stop audio input")
	}
	return c.blob, nil
}

// Clear discards the blob and its transient reference and returns to idle.
func (c *Controller) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRecording {
		return errs.New("cannot clear while recording")
	}
	if c.blob != nil {
		c.blob.Release()
		c.blob = nil
	}
	c.chunks = nil
	c.stoppedAt = 0
	c.state = StateIdle
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Blob returns the finalized blob, nil unless stopped-with-data.
func (c *Controller) Blob() *Blob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blob
}

// ElapsedSeconds is the running counter while recording, frozen after Stop,
// zero when idle.
func (c *Controller) ElapsedSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateRecording:
		return int(c.clock().Sub(c.startTime).Seconds())
	case StateStopped:
		return c.stoppedAt
	default:
		return 0
	}
}
