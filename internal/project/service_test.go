package project

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/blobstore"
	"github.com/repohandler/repohandler/internal/docstore"
)

// failingBlobs wraps a memory blob store and fails every Delete.
type failingBlobs struct {
	*blobstore.MemoryStore
	deletes int
}

func (f *failingBlobs) Delete(context.Context, string) error {
	f.deletes++
	return errors.New("bucket unreachable")
}

// stalledBlobs never answers an upload until the caller gives up.
type stalledBlobs struct {
	*blobstore.MemoryStore
}

func (stalledBlobs) Upload(ctx context.Context, _ []byte, _, _, _ string) (blobstore.Object, error) {
	<-ctx.Done()
	return blobstore.Object{}, ctx.Err()
}

// racingRepo lets another upload land right after every SetAttachment.
type racingRepo struct {
	Repository
	blobs *blobstore.MemoryStore
}

func (r *racingRepo) SetAttachment(ctx context.Context, id, name, url string) error {
	if err := r.Repository.SetAttachment(ctx, id, name, url); err != nil {
		return err
	}
	other, err := r.blobs.Upload(ctx, []byte("%PDF-other"), "other.pdf", "TEAM-1", "application/pdf")
	if err != nil {
		return err
	}
	return r.Repository.SetAttachment(ctx, id, other.Name, other.URL)
}

func setupService(t *testing.T) (*Service, *blobstore.MemoryStore) {
	t.Helper()
	blobs := blobstore.NewMemoryStore("http://localhost:8000")
	svc := NewService(NewRepository(docstore.NewMemoryStore()), blobs, zap.NewNop(), nil)
	return svc, blobs
}

func submission(name string) Submission {
	return Submission{
		Name:        name,
		Description: "a project",
		GithubURL:   "https://github.com/a/b",
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	fixed := time.Date(2025, 4, 2, 8, 0, 0, 123456789, time.UTC)
	svc.now = func() time.Time { return fixed }

	p, err := svc.Create(ctx, "TEAM-1", "a@x.com", submission("Foo"))

	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "TEAM-1", p.TeamID)
	assert.Equal(t, "a@x.com", p.Email)
	assert.Nil(t, p.PromptPDFName)
	assert.Nil(t, p.PromptPDFURL)
	assert.Nil(t, p.Scores)
	assert.Nil(t, p.TotalScore)
	assert.NotNil(t, p.Features)
	assert.NotNil(t, p.TeamMembers)
	assert.Equal(t, fixed.Truncate(time.Microsecond), p.SubmittedAt)

	_, err = svc.Create(ctx, "TEAM-1", "a@x.com", submission("Again"))
	assert.ErrorIs(t, err, ErrTeamHasProject)
}

func TestService_ListForTeam(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	empty, err := svc.ListForTeam(ctx, "TEAM-1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = svc.Create(ctx, "TEAM-1", "a@x.com", submission("Foo"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "TEAM-2", "b@x.com", submission("Bar"))
	require.NoError(t, err)

	mine, err := svc.ListForTeam(ctx, "TEAM-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Foo", mine[0].Name)
}

func TestService_Update(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "TEAM-1", "a@x.com", submission("Foo"))
	require.NoError(t, err)
	require.NoError(t, svc.repo.SetScores(ctx, p.ID, Scores{Innovation: 1, Feasibility: 1, UIUX: 1, PromptEfficiency: 1}))

	updated, err := svc.Update(ctx, p.ID, "TEAM-1", Submission{
		Name:        "Foo v2",
		Description: "better",
		GithubURL:   "https://github.com/a/c",
		TeamName:    "Rockets",
		Features:    []Feature{{ID: "1", Text: "search"}},
		TeamMembers: []Member{{ID: "1", Name: "Ada"}},
	})

	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, "Foo v2", updated.Name)
	assert.Equal(t, "Rockets", updated.TeamName)
	assert.Len(t, updated.Features, 1)
	assert.Len(t, updated.TeamMembers, 1)
	assert.True(t, p.SubmittedAt.Equal(updated.SubmittedAt))
	require.NotNil(t, updated.TotalScore, "scores survive an update")
	assert.Equal(t, 4.0, *updated.TotalScore)
}

func TestService_OwnershipChecks(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "TEAM-1", "a@x.com", submission("Foo"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, p.ID, "TEAM-2")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = svc.Update(ctx, p.ID, "TEAM-2", Submission{})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = svc.AttachPDF(ctx, p.ID, "TEAM-2", []byte("%PDF"), "x.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	err = svc.Delete(ctx, p.ID, "TEAM-2")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	got, err := svc.Get(ctx, p.ID, "TEAM-1")
	require.NoError(t, err)
	assert.Equal(t, "Foo", got.Name, "project untouched by foreign team")
}

func TestService_NotFound(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing", "TEAM-1")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	_, err = svc.Update(ctx, "missing", "TEAM-1", submission("x"))
	assert.ErrorIs(t, err, ErrProjectNotFound)

	_, err = svc.AttachPDF(ctx, "missing", "TEAM-1", []byte("%PDF"), "x.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "missing", "TEAM-1"), ErrProjectNotFound)
}

func TestService_AttachPDF_RejectsOtherMediaTypes(t *testing.T) {
	svc, blobs := setupService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "TEAM-1", "a@x.com", submission("Foo"))
	require.NoError(t, err)

	for _, ct := range []string{"text/plain", "", "application/pdfx", "image/png"} {
		_, err := svc.AttachPDF(ctx, p.ID, "TEAM-1", []byte("hello"), "notes.txt", ct)
		assert.ErrorIs(t, err, ErrUnsupportedMediaType, ct)
	}
	assert.Equal(t, 0, blobs.Len())

	_, err = svc.AttachPDF(ctx, p.ID, "TEAM-1", []byte("%PDF"), "a.pdf", "application/pdf; charset=binary")
	assert.NoError(t, err)
}

func TestService_SubmissionLifecycle(t *testing.T) {
	svc, blobs := setupService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "TEAM-ABCD1234", "a@x.com", submission("Foo"))
	require.NoError(t, err)

	_, err = svc.AttachPDF(ctx, p.ID, "TEAM-ABCD1234", []byte("plain"), "notes.txt", "text/plain")
	require.ErrorIs(t, err, ErrUnsupportedMediaType)

	first, err := svc.AttachPDF(ctx, p.ID, "TEAM-ABCD1234", []byte("%PDF-1"), "prompt.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "prompt.pdf", first.Filename)
	assert.Regexp(t, `^prompts/TEAM-ABCD1234/[0-9a-f-]{36}\.pdf$`, first.BlobName)
	assert.Equal(t, "http://localhost:8000/mock-storage/"+first.BlobName, first.URL)

	got, err := svc.Get(ctx, p.ID, "TEAM-ABCD1234")
	require.NoError(t, err)
	require.NotNil(t, got.PromptPDFName)
	assert.Equal(t, first.BlobName, *got.PromptPDFName)
	assert.Equal(t, first.URL, *got.PromptPDFURL)

	second, err := svc.AttachPDF(ctx, p.ID, "TEAM-ABCD1234", []byte("%PDF-2"), "prompt-v2.pdf", "application/pdf")
	require.NoError(t, err)
	assert.NotEqual(t, first.BlobName, second.BlobName)
	_, _, err = blobs.Open(ctx, first.BlobName)
	assert.ErrorIs(t, err, blobstore.ErrNotFound, "old blob removed on replace")
	assert.Equal(t, 1, blobs.Len())

	require.NoError(t, svc.Delete(ctx, p.ID, "TEAM-ABCD1234"))

	remaining, err := svc.ListForTeam(ctx, "TEAM-ABCD1234")
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Equal(t, 0, blobs.Len(), "blob removed with the project")
}

func TestService_BlobCleanupFailuresAreSwallowed(t *testing.T) {
	blobs := &failingBlobs{MemoryStore: blobstore.NewMemoryStore("http://localhost:8000")}
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_blob_cleanup_failures_total"})
	svc := NewService(NewRepository(docstore.NewMemoryStore()), blobs, zap.NewNop(), counter)
	ctx := context.Background()

	p, err := svc.Create(ctx, "TEAM-1", "a@x.com", submission("Foo"))
	require.NoError(t, err)
	_, err = svc.AttachPDF(ctx, p.ID, "TEAM-1", []byte("%PDF-1"), "a.pdf", "application/pdf")
	require.NoError(t, err)

	_, err = svc.AttachPDF(ctx, p.ID, "TEAM-1", []byte("%PDF-2"), "b.pdf", "application/pdf")
	require.NoError(t, err, "replacement is not blocked by a failed delete")

	require.NoError(t, svc.Delete(ctx, p.ID, "TEAM-1"), "deletion is not blocked by a failed delete")

	_, err = svc.Get(ctx, p.ID, "TEAM-1")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.Equal(t, 2, blobs.deletes)
	assert.Equal(t, 2.0, testutil.ToFloat64(counter))
}

func TestService_AttachPDF_StalledBlobStoreTimesOut(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewResilient(stalledBlobs{blobstore.NewMemoryStore("http://localhost:8000")},
		blobstore.ResilientOptions{Timeout: 100 * time.Millisecond})
	svc := NewService(NewRepository(docstore.NewMemoryStore()), blobs, zap.NewNop(), nil)

	p, err := svc.Create(ctx, "TEAM-1", "a@x.com", submission("Foo"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.AttachPDF(ctx, p.ID, "TEAM-1", []byte("%PDF"), "a.pdf", "application/pdf")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, blobstore.ErrUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("AttachPDF did not return after the blob timeout")
	}

	got, err := svc.Get(ctx, p.ID, "TEAM-1")
	require.NoError(t, err)
	assert.False(t, got.HasPDF())
}

func TestService_AttachPDF_ConcurrentReplacementCleansUpLoser(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore("http://localhost:8000")
	repo := &racingRepo{Repository: NewRepository(docstore.NewMemoryStore()), blobs: blobs}
	svc := NewService(repo, blobs, zap.NewNop(), nil)

	p, err := svc.Create(ctx, "TEAM-1", "a@x.com", submission("Foo"))
	require.NoError(t, err)

	_, err = svc.AttachPDF(ctx, p.ID, "TEAM-1", []byte("%PDF-mine"), "mine.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrAttachmentSuperseded)

	got, err := svc.Get(ctx, p.ID, "TEAM-1")
	require.NoError(t, err)
	require.True(t, got.HasPDF())
	assert.Equal(t, 1, blobs.Len(), "only the winning upload should remain")

	data, _, err := blobs.Open(ctx, *got.PromptPDFName)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-other", string(data))
}
