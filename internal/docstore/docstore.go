// Package docstore is a small collection/document store abstraction with
// equality-filtered queries. Documents are JSON objects addressed by
// (collection, id).
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// TimeLayout is the fixed-width UTC layout used for stored timestamps, so
// string order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp. Values written without the fixed
// width, such as plain RFC 3339, are accepted too.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse("2006-01-02T15:04:05.999999", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrConflict is returned by CreateUnique when another document in the
// collection already holds the unique field value.
var ErrConflict = errors.New("unique field value already exists")

// ErrDuplicateID is returned by CreateUnique when the requested id is taken.
var ErrDuplicateID = errors.New("document id already exists")

// ErrUnavailable marks transport-level failures (timeouts, connection loss).
// Idempotent reads failing with it may be retried.
var ErrUnavailable = errors.New("document store unavailable")

// ErrInvalidField is returned for field names that are not plain identifiers.
var ErrInvalidField = errors.New("invalid field name")

// Document is a stored JSON object and its id.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Filter selects documents whose top-level string field equals Value.
type Filter struct {
	Field string
	Value string
}

// Store is implemented by every backend.
type Store interface {
	// Get returns ErrNotFound when the document is absent.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Set creates or replaces the document.
	Set(ctx context.Context, collection, id string, data json.RawMessage) error
	// Add stores data under a generated id and returns it.
	Add(ctx context.Context, collection string, data json.RawMessage) (string, error)
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete is a no-op for absent documents.
	Delete(ctx context.Context, collection, id string) error
	// Query returns matching documents ordered by id. limit <= 0 means no limit.
	Query(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error)
	// All returns every document in the collection ordered by id.
	All(ctx context.Context, collection string) ([]Document, error)
	// CreateUnique stores data only if no document matches unique. An empty id
	// is generated. The check and the write are atomic.
	CreateUnique(ctx context.Context, collection, id string, unique Filter, data json.RawMessage) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

func checkFields(fields map[string]any) error {
	for f := range fields {
		if err := checkField(f); err != nil {
			return err
		}
	}
	return nil
}
