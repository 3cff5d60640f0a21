package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/repohandler/repohandler/internal/api/middleware"
	"github.com/repohandler/repohandler/internal/auth"
	"github.com/repohandler/repohandler/internal/project"
	"github.com/repohandler/repohandler/internal/review"
	"github.com/repohandler/repohandler/internal/team"
)

// --- Mock TeamRegistry ---

type mockTeams struct {
	createOrFetchFn func(ctx context.Context, email string) (*team.Team, bool, error)
	teamLoginFn     func(teamID, email string) error
}

func (m *mockTeams) CreateOrFetch(ctx context.Context, email string) (*team.Team, bool, error) {
	return m.createOrFetchFn(ctx, email)
}

func (m *mockTeams) TeamLogin(teamID, email string) error {
	if m.teamLoginFn != nil {
		return m.teamLoginFn(teamID, email)
	}
	return nil
}

// --- Mock ProjectService ---

type mockProjects struct {
	listFn   func(ctx context.Context, teamID string) ([]project.Project, error)
	createFn func(ctx context.Context, teamID, email string, sub project.Submission) (*project.Project, error)
	getFn    func(ctx context.Context, id, teamID string) (*project.Project, error)
	updateFn func(ctx context.Context, id, teamID string, sub project.Submission) (*project.Project, error)
	attachFn func(ctx context.Context, id, teamID string, data []byte, filename, contentType string) (*project.Attachment, error)
	deleteFn func(ctx context.Context, id, teamID string) error
}

func (m *mockProjects) ListForTeam(ctx context.Context, teamID string) ([]project.Project, error) {
	return m.listFn(ctx, teamID)
}

func (m *mockProjects) Create(ctx context.Context, teamID, email string, sub project.Submission) (*project.Project, error) {
	return m.createFn(ctx, teamID, email, sub)
}

func (m *mockProjects) Get(ctx context.Context, id, teamID string) (*project.Project, error) {
	return m.getFn(ctx, id, teamID)
}

func (m *mockProjects) Update(ctx context.Context, id, teamID string, sub project.Submission) (*project.Project, error) {
	return m.updateFn(ctx, id, teamID, sub)
}

func (m *mockProjects) AttachPDF(ctx context.Context, id, teamID string, data []byte, filename, contentType string) (*project.Attachment, error) {
	return m.attachFn(ctx, id, teamID, data, filename, contentType)
}

func (m *mockProjects) Delete(ctx context.Context, id, teamID string) error {
	return m.deleteFn(ctx, id, teamID)
}

// --- Mock ReviewService ---

type mockReview struct {
	listAllFn      func(ctx context.Context, search string) ([]project.Project, error)
	updateScoresFn func(ctx context.Context, id string, s project.Scores) (*review.ScoreResult, error)
	statsFn        func(ctx context.Context) (*review.Stats, error)
}

func (m *mockReview) ListAll(ctx context.Context, search string) ([]project.Project, error) {
	return m.listAllFn(ctx, search)
}

func (m *mockReview) UpdateScores(ctx context.Context, id string, s project.Scores) (*review.ScoreResult, error) {
	return m.updateScoresFn(ctx, id, s)
}

func (m *mockReview) Stats(ctx context.Context) (*review.Stats, error) {
	return m.statsFn(ctx)
}

// --- Helpers ---

var teamIdentity = &auth.Identity{TeamID: "TEAM-ABCD1234", Email: "a@x.com", Role: auth.RoleTeam}

func makeChiRequest(method, path string, body []byte, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req, w
}

func asTeam(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), teamIdentity))
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err, "failed to parse response body")
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := parseEnvelope(t, w)
	apiErr, ok := env["error"].(map[string]interface{})
	require.True(t, ok, "response should carry an error object: %s", w.Body.String())
	return apiErr["code"].(string)
}

func strPtr(s string) *string { return &s }

func sampleProject(id string) *project.Project {
	return &project.Project{
		ID:            id,
		TeamID:        teamIdentity.TeamID,
		Email:         teamIdentity.Email,
		Name:          "Foo",
		Description:   "does foo",
		GithubURL:     "https://github.com/a/b",
		Features:      []project.Feature{},
		TeamMembers:   []project.Member{},
		SubmittedAt:   time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
		SchemaVersion: project.SchemaVersion,
	}
}
