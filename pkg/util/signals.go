package util

import "sync"

// SignalHandler receives the emitting object plus optional parameters.
type SignalHandler func(sender any, params ...any)

type signalBus struct {
	mu       sync.RWMutex
	handlers map[string][]SignalHandler
}

var bus = &signalBus{handlers: make(map[string][]SignalHandler)}

// Sig 返回全局信号总线
func Sig() *signalBus { return bus }

func (b *signalBus) Connect(name string, h SignalHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

func (b *signalBus) Emit(name string, sender any, params ...any) {
	b.mu.RLock()
	hs := make([]SignalHandler, len(b.handlers[name]))
	copy(hs, b.handlers[name])
	b.mu.RUnlock()
	for _, h := range hs {
		h(sender, params...)
	}
}
