package project

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/blobstore"
)

const pdfContentType = "application/pdf"

// ErrNotAuthorized is returned when a team acts on another team's project.
var ErrNotAuthorized = errors.New("not authorized")

// ErrUnsupportedMediaType is returned when an attachment is not a PDF.
var ErrUnsupportedMediaType = errors.New("only PDF files are allowed")

// ErrAttachmentSuperseded is returned when a concurrent upload replaced the
// attachment before this one could be confirmed. The losing blob is removed.
var ErrAttachmentSuperseded = errors.New("attachment replaced by a concurrent upload")

// Service owns the project lifecycle for teams.
type Service struct {
	repo            Repository
	blobs           blobstore.Store
	logger          *zap.Logger
	cleanupFailures prometheus.Counter
	now             func() time.Time
}

// NewService creates a new Service. cleanupFailures may be nil.
func NewService(repo Repository, blobs blobstore.Store, logger *zap.Logger, cleanupFailures prometheus.Counter) *Service {
	if cleanupFailures == nil {
		cleanupFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "blob_cleanup_failures_total"})
	}
	return &Service{
		repo:            repo,
		blobs:           blobs,
		logger:          logger,
		cleanupFailures: cleanupFailures,
		now:             time.Now,
	}
}

// ListForTeam returns the team's projects; at most one in practice.
func (s *Service) ListForTeam(ctx context.Context, teamID string) ([]Project, error) {
	return s.repo.ListByTeam(ctx, teamID)
}

// Create stores the team's first and only project.
func (s *Service) Create(ctx context.Context, teamID, email string, sub Submission) (*Project, error) {
	p := &Project{
		TeamID:      teamID,
		Email:       email,
		TeamName:    sub.TeamName,
		Name:        sub.Name,
		Description: sub.Description,
		GithubURL:   sub.GithubURL,
		Features:    nonNilFeatures(sub.Features),
		TeamMembers: nonNilMembers(sub.TeamMembers),
		SubmittedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("project created", zap.String("projectId", p.ID), zap.String("teamId", teamID))
	return p, nil
}

// Get returns a project owned by teamID.
func (s *Service) Get(ctx context.Context, id, teamID string) (*Project, error) {
	return s.owned(ctx, id, teamID)
}

// Update overwrites the submission fields. Scores, attachment and
// submission time are left untouched.
func (s *Service) Update(ctx context.Context, id, teamID string, sub Submission) (*Project, error) {
	if _, err := s.owned(ctx, id, teamID); err != nil {
		return nil, err
	}

	sub.Features = nonNilFeatures(sub.Features)
	sub.TeamMembers = nonNilMembers(sub.TeamMembers)
	if err := s.repo.UpdateSubmission(ctx, id, sub); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

// AttachPDF stores data as the project's prompt document, replacing any
// previous one.
func (s *Service) AttachPDF(ctx context.Context, id, teamID string, data []byte, filename, contentType string) (*Attachment, error) {
	if !isPDF(contentType) {
		return nil, ErrUnsupportedMediaType
	}

	p, err := s.owned(ctx, id, teamID)
	if err != nil {
		return nil, err
	}

	if p.HasPDF() {
		s.bestEffortDelete(ctx, *p.PromptPDFName, id)
	}

	obj, err := s.blobs.Upload(ctx, data, filename, teamID, pdfContentType)
	if err != nil {
		return nil, fmt.Errorf("uploading pdf: %w", err)
	}

	if err := s.repo.SetAttachment(ctx, id, obj.Name, obj.URL); err != nil {
		s.bestEffortDelete(ctx, obj.Name, id)
		return nil, err
	}

	// last writer wins; a loser must not leave its blob behind
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.PromptPDFName == nil || *current.PromptPDFName != obj.Name {
		s.bestEffortDelete(ctx, obj.Name, id)
		return nil, ErrAttachmentSuperseded
	}

	s.logger.Info("pdf attached", zap.String("projectId", id), zap.String("blobName", obj.Name))
	return &Attachment{Filename: filename, BlobName: obj.Name, URL: obj.URL}, nil
}

// Delete removes the project and, best-effort, its prompt document.
func (s *Service) Delete(ctx context.Context, id, teamID string) error {
	p, err := s.owned(ctx, id, teamID)
	if err != nil {
		return err
	}

	if p.HasPDF() {
		s.bestEffortDelete(ctx, *p.PromptPDFName, id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("project deleted", zap.String("projectId", id), zap.String("teamId", teamID))
	return nil
}

func (s *Service) owned(ctx context.Context, id, teamID string) (*Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.TeamID != teamID {
		return nil, ErrNotAuthorized
	}
	return p, nil
}

// bestEffortDelete removes a blob and swallows any failure.
func (s *Service) bestEffortDelete(ctx context.Context, blobName, projectID string) {
	if err := s.blobs.Delete(ctx, blobName); err != nil {
		s.cleanupFailures.Inc()
		s.logger.Warn("blob cleanup failed",
			zap.String("blobName", blobName),
			zap.String("projectId", projectID),
			zap.Error(err),
		)
	}
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == pdfContentType
}

func nonNilFeatures(f []Feature) []Feature {
	if f == nil {
		return []Feature{}
	}
	return f
}

func nonNilMembers(m []Member) []Member {
	if m == nil {
		return []Member{}
	}
	return m
}
