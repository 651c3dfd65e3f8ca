package relayer

import (
	"context"
	"sync"
)

// CursorStore tracks the last fully scanned block so the relayer can resume
// without skipping or reprocessing blocks.
type CursorStore interface {
	// Load returns the last saved block number, or 0 if no progress has
	// been saved yet.
	Load(ctx context.Context) (uint64, error)

	// Save persists the last fully scanned block number.
	Save(ctx context.Context, block uint64) error
}

// MemoryCursor is an in-memory CursorStore. Progress is lost on restart.
type MemoryCursor struct {
	mu    sync.RWMutex
	block uint64
}

func NewMemoryCursor() *MemoryCursor {
	return &MemoryCursor{}
}

func (m *MemoryCursor) Load(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.block, nil
}

func (m *MemoryCursor) Save(ctx context.Context, block uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = block
	return nil
}
