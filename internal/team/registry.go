package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxIDAttempts = 3

// ErrInvalidTeamID is returned by TeamLogin for team ids shorter than three
// characters after trimming, or containing the token separator ':'.
var ErrInvalidTeamID = errors.New("invalid team ID")

// ErrInvalidEmail is returned by TeamLogin when no email is given.
var ErrInvalidEmail = errors.New("email is required")

// ErrTeamIDExhausted is returned when every generated team id collided.
var ErrTeamIDExhausted = errors.New("could not allocate a unique team id")

// Registry creates and looks up teams.
type Registry struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewRegistry creates a new Registry.
func NewRegistry(repo Repository, logger *zap.Logger) *Registry {
	return &Registry{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		newID:  NewTeamID,
	}
}

// NewTeamID returns "TEAM-" followed by eight uppercase hex characters.
func NewTeamID() string {
	return "TEAM-" + strings.ToUpper(uuid.New().String()[:8])
}

// CreateOrFetch returns the team led by leaderEmail, creating it if needed.
// created reports whether this call created the team.
func (r *Registry) CreateOrFetch(ctx context.Context, leaderEmail string) (*Team, bool, error) {
	existing, err := r.repo.GetByLeaderEmail(ctx, leaderEmail)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrTeamNotFound) {
		return nil, false, fmt.Errorf("looking up team: %w", err)
	}

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		t := &Team{
			TeamID:      r.newID(),
			LeaderEmail: leaderEmail,
			CreatedAt:   r.now().UTC(),
		}

		err := r.repo.Create(ctx, t)
		switch {
		case err == nil:
			r.logger.Info("team created", zap.String("teamId", t.TeamID))
			return t, true, nil
		case errors.Is(err, ErrDuplicateLeaderEmail):
			// lost a race with a concurrent registration for the same email
			winner, err := r.repo.GetByLeaderEmail(ctx, leaderEmail)
			if err != nil {
				return nil, false, fmt.Errorf("fetching concurrently created team: %w", err)
			}
			return winner, false, nil
		case errors.Is(err, ErrDuplicateTeamID):
			r.logger.Warn("team id collision", zap.String("teamId", t.TeamID), zap.Int("attempt", attempt))
		default:
			return nil, false, fmt.Errorf("creating team: %w", err)
		}
	}

	return nil, false, ErrTeamIDExhausted
}

// Get returns the team with teamID.
func (r *Registry) Get(ctx context.Context, teamID string) (*Team, error) {
	return r.repo.GetByID(ctx, teamID)
}

// TeamLogin checks the shape of a login request. The team does not have to
// be registered.
func (r *Registry) TeamLogin(teamID, email string) error {
	if len(strings.TrimSpace(teamID)) < 3 || strings.Contains(teamID, ":") {
		return ErrInvalidTeamID
	}
	if email == "" {
		return ErrInvalidEmail
	}
	return nil
}
