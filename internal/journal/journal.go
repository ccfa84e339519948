// Package journal records security events in a hash-chained, append-only log.
//
// The chain starts at a fixed genesis entry whose Hash is GenesisHash. Every
// later entry stores the hash of its predecessor, so any edit to a recorded
// event is caught by Verify. State lives for the lifetime of the process.
package journal

import (
	"context"
	"errors"
)

// ErrInvalidRecord is returned by Append when required fields are missing.
var ErrInvalidRecord = errors.New("invalid security record")

// Journal is the append-only security event log.
type Journal interface {
	// Append records a security event and returns the chained entry.
	Append(ctx context.Context, rec Record) (*Entry, error)

	// List returns recorded events in insertion order, oldest first. The
	// genesis entry is not included.
	List(ctx context.Context) ([]*Entry, error)

	// Len returns the number of recorded events.
	Len(ctx context.Context) (int, error)

	// Verify walks the whole chain and returns nil when it is intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the chain tip.
	Root(ctx context.Context) (string, error)
}
