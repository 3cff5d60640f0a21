package blobstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repohandler/repohandler/internal/blobstore"
)

// blockingStore never answers until the caller gives up.
type blockingStore struct{}

func (blockingStore) Upload(ctx context.Context, _ []byte, _, _, _ string) (blobstore.Object, error) {
	<-ctx.Done()
	return blobstore.Object{}, ctx.Err()
}

func (blockingStore) Delete(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

// flakyDeletes fails the first failures deletes with err.
type flakyDeletes struct {
	*blobstore.MemoryStore
	failures int
	err      error
	calls    int
}

func (f *flakyDeletes) Delete(ctx context.Context, name string) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return f.MemoryStore.Delete(ctx, name)
}

func TestResilient_UploadTimesOut(t *testing.T) {
	r := blobstore.NewResilient(blockingStore{}, blobstore.ResilientOptions{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := r.Upload(context.Background(), []byte("x"), "a.pdf", "TEAM-1", "application/pdf")

	assert.ErrorIs(t, err, blobstore.ErrUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResilient_DeleteTimesOut(t *testing.T) {
	r := blobstore.NewResilient(blockingStore{}, blobstore.ResilientOptions{
		Timeout:         20 * time.Millisecond,
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
	})

	err := r.Delete(context.Background(), "prompts/TEAM-1/a.pdf")

	assert.ErrorIs(t, err, blobstore.ErrUnavailable)
}

func TestResilient_RetriesUnavailableDeletes(t *testing.T) {
	mem := blobstore.NewMemoryStore("http://localhost:8000")
	obj, err := mem.Upload(context.Background(), []byte("x"), "a.pdf", "TEAM-1", "application/pdf")
	require.NoError(t, err)

	flaky := &flakyDeletes{MemoryStore: mem, failures: 2, err: blobstore.ErrUnavailable}
	r := blobstore.NewResilient(flaky, blobstore.ResilientOptions{MaxRetries: 3, InitialInterval: time.Millisecond})

	require.NoError(t, r.Delete(context.Background(), obj.Name))
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, 0, mem.Len())
}

func TestResilient_DoesNotRetryOtherDeleteErrors(t *testing.T) {
	flaky := &flakyDeletes{
		MemoryStore: blobstore.NewMemoryStore("http://localhost:8000"),
		failures:    5,
		err:         errors.New("access denied"),
	}
	r := blobstore.NewResilient(flaky, blobstore.ResilientOptions{MaxRetries: 3, InitialInterval: time.Millisecond})

	assert.Error(t, r.Delete(context.Background(), "x"))
	assert.Equal(t, 1, flaky.calls)
}

func TestResilient_PassesUploadsThrough(t *testing.T) {
	mem := blobstore.NewMemoryStore("http://localhost:8000")
	r := blobstore.NewResilient(mem, blobstore.ResilientOptions{Timeout: time.Second})

	obj, err := r.Upload(context.Background(), []byte("%PDF"), "a.pdf", "TEAM-1", "application/pdf")
	require.NoError(t, err)

	data, _, err := mem.Open(context.Background(), obj.Name)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}
