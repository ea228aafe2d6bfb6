package playback

import (
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ClockPlayer advances position in real time for the duration of the source
// WAV. It produces no sound; it exists so the multiplexer can run in
// headless environments (CLI, tests against a live server).
type ClockPlayer struct {
	mu sync.Mutex

	duration time.Duration
	position time.Duration
	playing  bool
	volume   float64
	muted    bool

	stop    chan struct{}
	onEnded func()
	onError func(err error)
}

func NewClockPlayer() *ClockPlayer {
	return &ClockPlayer{volume: 1}
}

// SetSource downloads the WAV header and derives the track duration from it.
func (p *ClockPlayer) SetSource(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch audio source: status %d", resp.StatusCode)
	}

	header := make([]byte, 44)
	if _, err := io.ReadFull(resp.Body, header); err != nil {
		return fmt.Errorf("read wav header: %w", err)
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return fmt.Errorf("source is not a RIFF/WAVE container")
	}
	byteRate := binary.LittleEndian.Uint32(header[28:32])
	dataLen := binary.LittleEndian.Uint32(header[40:44])
	if byteRate == 0 {
		return fmt.Errorf("wav header declares zero byte rate")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.duration = time.Duration(float64(dataLen)/float64(byteRate)*1000) * time.Millisecond
	p.position = 0
	return nil
}

func (p *ClockPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return nil
	}
	p.playing = true
	p.stop = make(chan struct{})

	go func(stop <-chan struct{}) {
		t := time.NewTicker(50 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				p.mu.Lock()
				p.position += 50 * time.Millisecond
				done := p.position >= p.duration
				if done {
					p.position = p.duration
					p.playing = false
					if p.stop != nil {
						close(p.stop)
						p.stop = nil
					}
				}
				ended := p.onEnded
				p.mu.Unlock()
				if done {
					if ended != nil {
						ended()
					}
					return
				}
			}
		}
	}(p.stop)
	return nil
}

func (p *ClockPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	return nil
}

func (p *ClockPlayer) Seek(position time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if position < 0 {
		position = 0
	}
	if position > p.duration {
		position = p.duration
	}
	p.position = position
	return nil
}

func (p *ClockPlayer) SetVolume(level float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = level
	return nil
}

func (p *ClockPlayer) SetMuted(muted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
	return nil
}

func (p *ClockPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *ClockPlayer) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *ClockPlayer) OnEnded(fn func())          { p.onEnded = fn }
func (p *ClockPlayer) OnError(fn func(err error)) { p.onError = fn }
