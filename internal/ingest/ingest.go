// Package ingest is the boundary between untrusted event batches and the
// detection engine. It decodes and validates a batch as a whole: a batch with
// one bad record is rejected entirely.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

// Limits applied to every batch.
const (
	MaxBatchSize = 10000
	MaxBodyBytes = 8 << 20
)

// ErrMalformedEvent is matched by every *MalformedEventError.
var ErrMalformedEvent = errors.New("malformed event")

// MalformedEventError reports why a batch was rejected. Index is -1 when the
// batch itself could not be decoded.
type MalformedEventError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedEventError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed event batch: %s", e.Reason)
	}
	if e.Field != "" {
		return fmt.Sprintf("malformed event %d: %s %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed event %d: %s", e.Index, e.Reason)
}

// Is reports whether target is ErrMalformedEvent.
func (e *MalformedEventError) Is(target error) bool {
	return target == ErrMalformedEvent
}

// record is the wire shape of a single event.
type record struct {
	Message   string `json:"message" validate:"max=65536"`
	Source    string `json:"source" validate:"required,max=256"`
	Timestamp uint64 `json:"timestamp"`
}

var validate = validator.New()

// Decode reads a JSON array of events from r and validates every record.
func Decode(r io.Reader) ([]threat.Event, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, tooLargeError()
		}
		return nil, fmt.Errorf("read batch: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, tooLargeError()
	}
	return DecodeBytes(body)
}

func tooLargeError() error {
	return &MalformedEventError{Index: -1, Reason: "batch body too large"}
}

// DecodeBytes is Decode for an in-memory payload.
func DecodeBytes(body []byte) ([]threat.Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &MalformedEventError{Index: -1, Reason: "empty body"}
	}
	if trimmed[0] != '[' {
		return nil, &MalformedEventError{Index: -1, Reason: "expected a JSON array of events"}
	}

	var records []record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &MalformedEventError{Index: -1, Reason: err.Error()}
	}
	return validateRecords(records)
}

// FromEvents validates events that were decoded elsewhere, for example by a
// gin binding.
func FromEvents(events []threat.Event) ([]threat.Event, error) {
	records := make([]record, len(events))
	for i, ev := range events {
		records[i] = record{Message: ev.Message, Source: ev.Source, Timestamp: ev.Timestamp}
	}
	return validateRecords(records)
}

// validateRecords checks the batch limits and each record, returning the
// events in input order.
func validateRecords(records []record) ([]threat.Event, error) {
	if len(records) > MaxBatchSize {
		return nil, &MalformedEventError{
			Index:  -1,
			Reason: fmt.Sprintf("batch of %d events exceeds limit of %d", len(records), MaxBatchSize),
		}
	}

	events := make([]threat.Event, 0, len(records))
	for i, rec := range records {
		rec.Source = strings.TrimSpace(rec.Source)
		if err := validate.Struct(rec); err != nil {
			return nil, malformed(i, err)
		}
		events = append(events, threat.Event{
			Message:   rec.Message,
			Source:    rec.Source,
			Timestamp: rec.Timestamp,
		})
	}
	return events, nil
}

// malformed converts the first validator failure into a MalformedEventError.
func malformed(index int, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &MalformedEventError{Index: index, Reason: err.Error()}
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &MalformedEventError{Index: index, Field: field, Reason: "is required"}
	case "max":
		return &MalformedEventError{Index: index, Field: field, Reason: "exceeds " + fe.Param() + " characters"}
	default:
		return &MalformedEventError{Index: index, Field: field, Reason: "failed " + fe.Tag() + " check"}
	}
}
