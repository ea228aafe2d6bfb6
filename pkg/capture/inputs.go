package capture

import (
	"context"
	"math"
	"os"
	"sync"
	"time"
)

// ToneInput synthesizes a sine wave at real-time pace. It stands in for a
// microphone on machines without one.
type ToneInput struct {
	SampleRate int
	Channels   int
	Freq       float64

	mu   sync.Mutex
	stop chan struct{}
}

func NewToneInput() *ToneInput {
	return &ToneInput{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Freq: 440}
}

func (t *ToneInput) RequestPermission(ctx context.Context) error { return nil }

func (t *ToneInput) Start(ctx context.Context) (<-chan []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return nil, os.ErrInvalid
	}
	t.stop = make(chan struct{})
	ch := make(chan []byte, 8)

	go func(stop <-chan struct{}) {
		defer close(ch)
		const chunkDur = 100 * time.Millisecond
		samplesPerChunk := t.SampleRate / 10
		ticker := time.NewTicker(chunkDur)
		defer ticker.Stop()
		phase := 0.0
		step := 2 * math.Pi * t.Freq / float64(t.SampleRate)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				chunk := make([]byte, samplesPerChunk*t.Channels*bytesPerSample)
				for i := 0; i < samplesPerChunk; i++ {
					v := int16(math.Sin(phase) * 0.3 * math.MaxInt16)
					phase += step
					for c := 0; c < t.Channels; c++ {
						off := (i*t.Channels + c) * bytesPerSample
						chunk[off] = byte(v)
						chunk[off+1] = byte(v >> 8)
					}
				}
				select {
				case ch <- chunk:
				case <-stop:
					return
				}
			}
		}
	}(t.stop)

	return ch, nil
}

func (t *ToneInput) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	return nil
}

// PCMFileInput replays a raw LINEAR16 PCM file as if it were live capture.
type PCMFileInput struct {
	Path      string
	ChunkSize int

	mu   sync.Mutex
	stop chan struct{}
}

func (p *PCMFileInput) RequestPermission(ctx context.Context) error {
	// 能打开文件即视为授权
	f, err := os.Open(p.Path)
	if err != nil {
		return err
	}
	return f.Close()
}

func (p *PCMFileInput) Start(ctx context.Context) (<-chan []byte, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	size := p.ChunkSize
	if size <= 0 {
		size = 3200 // 100ms @ 16kHz mono
	}
	ch := make(chan []byte, 8)

	go func() {
		defer close(ch)
		defer f.Close()
		for {
			buf := make([]byte, size)
			n, err := f.Read(buf)
			if n > 0 {
				select {
				case ch <- buf[:n]:
				case <-stop:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	return ch, nil
}

func (p *PCMFileInput) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	return nil
}
