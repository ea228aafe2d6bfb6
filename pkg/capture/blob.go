package capture

import (
	"sync"

	"github.com/google/uuid"
)

// refTable tracks live transient references, mirroring browser object URLs:
// each finalized blob gets a resolvable handle that must be explicitly
// released or the backing data is pinned for the process lifetime.
type refTable struct {
	mu   sync.Mutex
	refs map[string][]byte
}

var refs = &refTable{refs: make(map[string][]byte)}

// Blob is a finalized audio container plus its transient playable reference.
type Blob struct {
	data []byte
	ref  string

	mu       sync.Mutex
	released bool
}

func newBlob(data []byte) *Blob {
	ref := "blob:voicebank/" + uuid.NewString()
	refs.mu.Lock()
	refs.refs[ref] = data
	refs.mu.Unlock()
	return &Blob{data: data, ref: ref}
}

func (b *Blob) Bytes() []byte { return b.data }

func (b *Blob) Size() int64 { return int64(len(b.data)) }

func (b *Blob) ContentType() string { return "audio/wav" }

// HasAudio reports whether the container holds any samples beyond the header.
func (b *Blob) HasAudio() bool { return len(b.data) > wavHeaderSize }

// Ref is the transient playable reference, empty after release.
func (b *Blob) Ref() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return ""
	}
	return b.ref
}

// Release revokes the transient reference. Safe to call more than once.
func (b *Blob) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	refs.mu.Lock()
	delete(refs.refs, b.ref)
	refs.mu.Unlock()
}

// Resolve looks up the data behind a transient reference.
func Resolve(ref string) ([]byte, bool) {
	refs.mu.Lock()
	defer refs.mu.Unlock()
	data, ok := refs.refs[ref]
	return data, ok
}

// ActiveRefs reports the number of unreleased references.
func ActiveRefs() int {
	refs.mu.Lock()
	defer refs.mu.Unlock()
	return len(refs.refs)
}
