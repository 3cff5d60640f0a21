package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/repohandler/repohandler/internal/docstore"
)

// Collection is the document store collection holding projects.
const Collection = "projects"

type featureDoc struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type memberDoc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type scoresDoc struct {
	Innovation       float64 `json:"innovation"`
	Feasibility      float64 `json:"feasibility"`
	UIUX             float64 `json:"uiUx"`
	PromptEfficiency float64 `json:"promptEfficiency"`
}

type projectDoc struct {
	TeamID        string       `json:"teamId"`
	Email         string       `json:"email"`
	TeamName      string       `json:"teamName"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	GithubURL     string       `json:"githubUrl"`
	Features      []featureDoc `json:"features"`
	TeamMembers   []memberDoc  `json:"teamMembers"`
	PromptPDFName *string      `json:"promptPdfName"`
	PromptPDFURL  *string      `json:"promptPdfUrl"`
	SubmittedAt   string       `json:"submittedAt"`
	Scores        *scoresDoc   `json:"scores"`
	TotalScore    *float64     `json:"totalScore"`
	SchemaVersion int          `json:"schemaVersion,omitempty"`
}

func featureDocs(in []Feature) []featureDoc {
	out := make([]featureDoc, 0, len(in))
	for _, f := range in {
		out = append(out, featureDoc{ID: f.ID, Text: f.Text})
	}
	return out
}

func memberDocs(in []Member) []memberDoc {
	out := make([]memberDoc, 0, len(in))
	for _, m := range in {
		out = append(out, memberDoc{ID: m.ID, Name: m.Name})
	}
	return out
}

func toScoresDoc(s Scores) scoresDoc {
	return scoresDoc{
		Innovation:       s.Innovation,
		Feasibility:      s.Feasibility,
		UIUX:             s.UIUX,
		PromptEfficiency: s.PromptEfficiency,
	}
}

func toDoc(p *Project) projectDoc {
	d := projectDoc{
		TeamID:        p.TeamID,
		Email:         p.Email,
		TeamName:      p.TeamName,
		Name:          p.Name,
		Description:   p.Description,
		GithubURL:     p.GithubURL,
		Features:      featureDocs(p.Features),
		TeamMembers:   memberDocs(p.TeamMembers),
		PromptPDFName: p.PromptPDFName,
		PromptPDFURL:  p.PromptPDFURL,
		SubmittedAt:   docstore.FormatTime(p.SubmittedAt),
		TotalScore:    p.TotalScore,
		SchemaVersion: SchemaVersion,
	}
	if p.Scores != nil {
		s := toScoresDoc(*p.Scores)
		d.Scores = &s
	}
	return d
}

// upgrade brings a decoded document to the current schema version.
func (d *projectDoc) upgrade() {
	if d.SchemaVersion < 2 {
		if d.TeamMembers == nil {
			d.TeamMembers = []memberDoc{}
		}
		d.SchemaVersion = 2
	}
	if d.Features == nil {
		d.Features = []featureDoc{}
	}
}

func (d *projectDoc) toProject(id string) (*Project, error) {
	submitted, err := docstore.ParseTime(d.SubmittedAt)
	if err != nil {
		return nil, err
	}

	p := &Project{
		ID:            id,
		TeamID:        d.TeamID,
		Email:         d.Email,
		TeamName:      d.TeamName,
		Name:          d.Name,
		Description:   d.Description,
		GithubURL:     d.GithubURL,
		Features:      make([]Feature, 0, len(d.Features)),
		TeamMembers:   make([]Member, 0, len(d.TeamMembers)),
		PromptPDFName: d.PromptPDFName,
		PromptPDFURL:  d.PromptPDFURL,
		SubmittedAt:   submitted,
		TotalScore:    d.TotalScore,
		SchemaVersion: d.SchemaVersion,
	}
	for _, f := range d.Features {
		p.Features = append(p.Features, Feature{ID: f.ID, Text: f.Text})
	}
	for _, m := range d.TeamMembers {
		p.TeamMembers = append(p.TeamMembers, Member{ID: m.ID, Name: m.Name})
	}
	if d.Scores != nil {
		p.Scores = &Scores{
			Innovation:       d.Scores.Innovation,
			Feasibility:      d.Scores.Feasibility,
			UIUX:             d.Scores.UIUX,
			PromptEfficiency: d.Scores.PromptEfficiency,
		}
		if p.TotalScore == nil {
			total := p.Scores.Total()
			p.TotalScore = &total
		}
	}
	return p, nil
}

func decode(doc *docstore.Document) (*Project, error) {
	var d projectDoc
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return nil, fmt.Errorf("decoding project %s: %w", doc.ID, err)
	}
	d.upgrade()
	p, err := d.toProject(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("decoding project %s: %w", doc.ID, err)
	}
	return p, nil
}

func decodeAll(docs []docstore.Document) ([]Project, error) {
	projects := make([]Project, 0, len(docs))
	for i := range docs {
		p, err := decode(&docs[i])
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

// StoreRepository implements Repository on a docstore.Store.
type StoreRepository struct {
	store docstore.Store
}

// NewRepository creates a new Repository backed by the given document store.
func NewRepository(store docstore.Store) Repository {
	return &StoreRepository{store: store}
}

// Create inserts a new project under a generated id. The one-project-per-team
// check is part of the same conditional write.
func (r *StoreRepository) Create(ctx context.Context, p *Project) error {
	data, err := json.Marshal(toDoc(p))
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}

	id, err := r.store.CreateUnique(ctx, Collection, "", docstore.Filter{Field: "teamId", Value: p.TeamID}, data)
	if err != nil {
		if errors.Is(err, docstore.ErrConflict) {
			return ErrTeamHasProject
		}
		return fmt.Errorf("inserting project: %w", err)
	}

	p.ID = id
	p.SchemaVersion = SchemaVersion
	return nil
}

// GetByID retrieves a single project by its id.
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*Project, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("querying project: %w", err)
	}
	return decode(doc)
}

// ListByTeam returns the projects owned by teamID.
func (r *StoreRepository) ListByTeam(ctx context.Context, teamID string) ([]Project, error) {
	docs, err := r.store.Query(ctx, Collection, docstore.Filter{Field: "teamId", Value: teamID}, 0)
	if err != nil {
		return nil, fmt.Errorf("listing team projects: %w", err)
	}
	return decodeAll(docs)
}

// List returns every project.
func (r *StoreRepository) List(ctx context.Context) ([]Project, error) {
	docs, err := r.store.All(ctx, Collection)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return decodeAll(docs)
}

// UpdateSubmission overwrites the team-editable fields and stamps the
// current schema version.
func (r *StoreRepository) UpdateSubmission(ctx context.Context, id string, s Submission) error {
	return r.update(ctx, id, "updating project", map[string]any{
		"name":          s.Name,
		"description":   s.Description,
		"githubUrl":     s.GithubURL,
		"teamName":      s.TeamName,
		"features":      featureDocs(s.Features),
		"teamMembers":   memberDocs(s.TeamMembers),
		"schemaVersion": SchemaVersion,
	})
}

// SetAttachment records the prompt document's blob name and URL together.
func (r *StoreRepository) SetAttachment(ctx context.Context, id, blobName, url string) error {
	return r.update(ctx, id, "attaching pdf", map[string]any{
		"promptPdfName": blobName,
		"promptPdfUrl":  url,
	})
}

// SetScores records scores and their total in one write.
func (r *StoreRepository) SetScores(ctx context.Context, id string, s Scores) error {
	return r.update(ctx, id, "scoring project", map[string]any{
		"scores":     toScoresDoc(s),
		"totalScore": s.Total(),
	})
}

func (r *StoreRepository) update(ctx context.Context, id, op string, fields map[string]any) error {
	if err := r.store.Update(ctx, Collection, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete removes a project. Deleting a missing project is not an error.
func (r *StoreRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}
