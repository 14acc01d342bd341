package task

import (
	"sync"

	"mcpd/internal/util"
)

// cappedBuffer accumulates stream output up to a byte ceiling. Writes past
// the cap are discarded and the overflow is remembered so readers see the
// truncation marker. Safe for one writer and many readers.
type cappedBuffer struct {
	mu        sync.Mutex
	data      []byte
	max       int
	truncated bool
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.max - len(b.data)
	if room <= 0 {
		b.truncated = true
		return
	}
	if len(p) > room {
		p = p[:room]
		b.truncated = true
	}
	b.data = append(b.data, p...)
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := util.SanitizeOutput(b.data)
	if b.truncated {
		out += util.TruncationMarker
	}
	return out
}
