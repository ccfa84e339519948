package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenesisHash anchors the chain. It is never computed.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Record is the caller-supplied part of a security event.
type Record struct {
	EventType string `json:"event_type"`
	Details   string `json:"details"`
	Severity  string `json:"severity"`
}

// Entry is one link in the chain.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Record
	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// hashEntry is the SHA-256 over the entry's fields. Never called for index 0.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%q|%q|%q|%s",
		e.Index, e.ID, e.Timestamp.Format(time.RFC3339Nano),
		e.EventType, e.Details, e.Severity, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}
