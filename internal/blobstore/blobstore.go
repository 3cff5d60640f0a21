// Package blobstore stores binary attachments and hands back a stable object
// name plus a URL the object can be fetched from.
package blobstore

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrUnavailable is returned when the backend cannot be reached or does
	// not answer in time.
	ErrUnavailable = errors.New("blob store unavailable")
)

// Object identifies a stored blob.
type Object struct {
	Name string
	URL  string
}

// Store is implemented by every blob backend. Delete must succeed for objects
// that do not exist.
type Store interface {
	Upload(ctx context.Context, data []byte, filename, namespace, contentType string) (Object, error)
	Delete(ctx context.Context, name string) error
}

// ObjectName builds "prompts/<namespace>/<uuid><ext>", keeping the extension
// of filename.
func ObjectName(namespace, filename string) string {
	ext := path.Ext(strings.ReplaceAll(filename, "\\", "/"))
	return "prompts/" + namespace + "/" + uuid.New().String() + ext
}
