package team

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/repohandler/repohandler/internal/docstore"
)

// Collection is the document store collection holding teams.
const Collection = "teams"

type teamDoc struct {
	TeamID      string `json:"teamId"`
	LeaderEmail string `json:"leaderEmail"`
	CreatedAt   string `json:"createdAt"`
}

func (d teamDoc) toTeam() (*Team, error) {
	created, err := docstore.ParseTime(d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &Team{TeamID: d.TeamID, LeaderEmail: d.LeaderEmail, CreatedAt: created}, nil
}

// StoreRepository implements Repository on a docstore.Store. Team documents
// are keyed by team id.
type StoreRepository struct {
	store docstore.Store
}

// NewRepository creates a new Repository backed by the given document store.
func NewRepository(store docstore.Store) Repository {
	return &StoreRepository{store: store}
}

// Create stores a new team. The leader email check and the write are a
// single conditional write, so concurrent registrations cannot both succeed.
func (r *StoreRepository) Create(ctx context.Context, t *Team) error {
	data, err := json.Marshal(teamDoc{
		TeamID:      t.TeamID,
		LeaderEmail: t.LeaderEmail,
		CreatedAt:   docstore.FormatTime(t.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("encoding team: %w", err)
	}

	_, err = r.store.CreateUnique(ctx, Collection, t.TeamID,
		docstore.Filter{Field: "leaderEmail", Value: t.LeaderEmail}, data)
	switch {
	case errors.Is(err, docstore.ErrConflict):
		return ErrDuplicateLeaderEmail
	case errors.Is(err, docstore.ErrDuplicateID):
		return ErrDuplicateTeamID
	case err != nil:
		return fmt.Errorf("inserting team: %w", err)
	}

	return nil
}

// GetByID retrieves a single team by its id.
func (r *StoreRepository) GetByID(ctx context.Context, teamID string) (*Team, error) {
	doc, err := r.store.Get(ctx, Collection, teamID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("querying team: %w", err)
	}
	return decode(doc)
}

// GetByLeaderEmail retrieves the team registered for email.
func (r *StoreRepository) GetByLeaderEmail(ctx context.Context, email string) (*Team, error) {
	docs, err := r.store.Query(ctx, Collection, docstore.Filter{Field: "leaderEmail", Value: email}, 1)
	if err != nil {
		return nil, fmt.Errorf("querying team by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrTeamNotFound
	}
	return decode(&docs[0])
}

func decode(doc *docstore.Document) (*Team, error) {
	var d teamDoc
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return nil, fmt.Errorf("decoding team %s: %w", doc.ID, err)
	}
	if d.TeamID == "" {
		d.TeamID = doc.ID
	}
	t, err := d.toTeam()
	if err != nil {
		return nil, fmt.Errorf("decoding team %s: %w", doc.ID, err)
	}
	return t, nil
}
