package team

import (
	"context"
	"errors"
)

// ErrTeamNotFound is returned when a team record is not found.
var ErrTeamNotFound = errors.New("team not found")

// ErrDuplicateLeaderEmail is returned when a team with the same leader email already exists.
var ErrDuplicateLeaderEmail = errors.New("leader email already has a team")

// ErrDuplicateTeamID is returned when the generated team id is already taken.
var ErrDuplicateTeamID = errors.New("team id already exists")

// Repository provides operations on the teams collection.
type Repository interface {
	Create(ctx context.Context, team *Team) error
	GetByID(ctx context.Context, teamID string) (*Team, error)
	GetByLeaderEmail(ctx context.Context, email string) (*Team, error)
}
