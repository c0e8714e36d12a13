// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"sync"

	"github.com/ik5/audmix/audio"
)

// Memory keeps everything written to it as normalized float32 samples.
type Memory struct {
	mu       sync.Mutex
	channels int
	data     []float32
	writes   int
	closed   bool
}

// NewMemory returns an empty in-memory sink for the given channel count.
func NewMemory(channels int) *Memory {
	return &Memory{channels: channels}
}

func (m *Memory) Write(buf audio.Samples) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for i := range buf.Len() {
		m.data = append(m.data, buf.Normalized(i))
	}
	m.writes++
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Samples returns a copy of the interleaved data written so far.
func (m *Memory) Samples() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float32(nil), m.data...)
}

// Frames returns the number of frames written so far.
func (m *Memory) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data) / max(m.channels, 1)
}

// Writes returns the number of Write calls accepted.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
