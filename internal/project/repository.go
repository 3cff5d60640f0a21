package project

import (
	"context"
	"errors"
)

// ErrProjectNotFound is returned when a project record is not found.
var ErrProjectNotFound = errors.New("project not found")

// ErrTeamHasProject is returned when a team that already submitted tries to create another project.
var ErrTeamHasProject = errors.New("team already has a project")

// Repository provides operations on the projects collection.
type Repository interface {
	// Create stores p and sets p.ID. At most one project may exist per team.
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	ListByTeam(ctx context.Context, teamID string) ([]Project, error)
	List(ctx context.Context) ([]Project, error)
	UpdateSubmission(ctx context.Context, id string, s Submission) error
	SetAttachment(ctx context.Context, id, blobName, url string) error
	SetScores(ctx context.Context, id string, s Scores) error
	Delete(ctx context.Context, id string) error
}
