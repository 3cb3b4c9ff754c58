package domain

import (
	"encoding/json"
	"sync"

	"github.com/mohae/deepcopy"
)

// Buffer is the private record shared by every state of one automaton.
// Unlike Context it is never observed and mutations emit nothing.
type Buffer struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewBuffer creates a buffer seeded with a deep copy of initial.
func NewBuffer(initial map[string]any) *Buffer {
	b := &Buffer{data: make(map[string]any)}
	for k, v := range initial {
		b.data[k] = deepcopy.Copy(v)
	}
	return b
}

// Get returns the value stored under key.
func (b *Buffer) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// Set stores value under key.
func (b *Buffer) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
}

// Delete removes key.
func (b *Buffer) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

// Snapshot returns a deep copy of the buffer contents.
func (b *Buffer) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return deepcopy.Copy(b.data).(map[string]any)
}

// FailedOutput returns the last captured failure, if any.
func (b *Buffer) FailedOutput() (FailedOutput, bool) {
	v, ok := b.Get(KeyFailedOutput)
	if !ok {
		return FailedOutput{}, false
	}
	fo, ok := v.(FailedOutput)
	return fo, ok
}

// SetFailedOutput records a captured failure.
func (b *Buffer) SetFailedOutput(fo FailedOutput) {
	b.Set(KeyFailedOutput, fo)
}

// MarshalJSON encodes a snapshot of the buffer.
func (b *Buffer) MarshalJSON() ([]byte, error) {
	return marshalMap(b.Snapshot())
}

func marshalMap(m map[string]any) ([]byte, error) {
	return json.Marshal(m)
}
