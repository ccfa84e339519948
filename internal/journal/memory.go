package journal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryJournal is the in-process Journal.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []*Entry
	now     func() time.Time
}

// New returns a MemoryJournal holding only the genesis entry.
func New() *MemoryJournal {
	j := &MemoryJournal{now: func() time.Time { return time.Now().UTC() }}
	j.entries = append(j.entries, &Entry{
		ID:        uuid.Nil,
		Index:     0,
		Timestamp: j.now(),
		Record:    Record{EventType: "genesis", Severity: "INFO"},
		PrevHash:  GenesisHash,
		Hash:      GenesisHash,
	})
	return j
}

// Append implements Journal.
func (j *MemoryJournal) Append(_ context.Context, rec Record) (*Entry, error) {
	rec.EventType = strings.TrimSpace(rec.EventType)
	rec.Severity = strings.ToUpper(strings.TrimSpace(rec.Severity))
	if rec.EventType == "" {
		return nil, fmt.Errorf("%w: event_type is required", ErrInvalidRecord)
	}
	if rec.Severity == "" {
		return nil, fmt.Errorf("%w: severity is required", ErrInvalidRecord)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	prev := j.entries[len(j.entries)-1]
	entry := &Entry{
		ID:        uuid.New(),
		Index:     len(j.entries),
		Timestamp: j.now(),
		Record:    rec,
		PrevHash:  prev.Hash,
	}
	entry.Hash = hashEntry(entry)
	j.entries = append(j.entries, entry)

	out := *entry
	return &out, nil
}

// List implements Journal.
func (j *MemoryJournal) List(_ context.Context) ([]*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]*Entry, 0, len(j.entries)-1)
	for _, e := range j.entries[1:] {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// Len implements Journal.
func (j *MemoryJournal) Len(_ context.Context) (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries) - 1, nil
}

// Verify implements Journal.
func (j *MemoryJournal) Verify(_ context.Context) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for i, curr := range j.entries {
		if i == 0 {
			if curr.Hash != GenesisHash {
				return fmt.Errorf("genesis entry has wrong hash: got %q", curr.Hash)
			}
			continue
		}
		if curr.PrevHash != j.entries[i-1].Hash {
			return fmt.Errorf("hash chain broken at index %d", curr.Index)
		}
		if curr.Hash != hashEntry(curr) {
			return fmt.Errorf("entry %d has invalid hash", curr.Index)
		}
	}
	return nil
}

// Root implements Journal.
func (j *MemoryJournal) Root(_ context.Context) (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.entries[len(j.entries)-1].Hash, nil
}
