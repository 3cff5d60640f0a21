package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/api/response"
	"github.com/repohandler/repohandler/internal/project"
	"github.com/repohandler/repohandler/internal/review"
)

// ReviewService is the subset of review.Service the admin endpoints use.
type ReviewService interface {
	ListAll(ctx context.Context, search string) ([]project.Project, error)
	UpdateScores(ctx context.Context, id string, scores project.Scores) (*review.ScoreResult, error)
	Stats(ctx context.Context) (*review.Stats, error)
}

type scoresRequest struct {
	Innovation       *float64 `json:"innovation" validate:"required"`
	Feasibility      *float64 `json:"feasibility" validate:"required"`
	UIUX             *float64 `json:"uiUx" validate:"required"`
	PromptEfficiency *float64 `json:"promptEfficiency" validate:"required"`
}

type scoresResponse struct {
	Message    string     `json:"message"`
	Scores     scoresBody `json:"scores"`
	TotalScore float64    `json:"totalScore"`
}

type statsResponse struct {
	TotalProjects     int `json:"totalProjects"`
	TeamsWithProjects int `json:"teamsWithProjects"`
	ProjectsWithPDF   int `json:"projectsWithPdf"`
	ProjectsScored    int `json:"projectsScored"`
}

// AdminHandler handles the /admin endpoints. Every route expects AdminAuth
// to have run.
type AdminHandler struct {
	svc    ReviewService
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc ReviewService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

// ListProjects handles GET /admin/projects?search=.
func (h *AdminHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListAll(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to list projects")
		return
	}

	response.JSON(w, http.StatusOK, toProjectResponses(projects))
}

// UpdateScores handles PUT /admin/projects/{id}/scores.
func (h *AdminHandler) UpdateScores(w http.ResponseWriter, r *http.Request) {
	var req scoresRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.UpdateScores(r.Context(), chi.URLParam(r, "id"), project.Scores{
		Innovation:       *req.Innovation,
		Feasibility:      *req.Feasibility,
		UIUX:             *req.UIUX,
		PromptEfficiency: *req.PromptEfficiency,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to update scores")
		return
	}

	response.JSON(w, http.StatusOK, scoresResponse{
		Message:    "Scores updated successfully",
		Scores:     toScoresBody(res.Scores),
		TotalScore: res.TotalScore,
	})
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to compute stats")
		return
	}

	response.JSON(w, http.StatusOK, statsResponse{
		TotalProjects:     st.TotalProjects,
		TeamsWithProjects: st.TeamsWithProjects,
		ProjectsWithPDF:   st.ProjectsWithPDF,
		ProjectsScored:    st.ProjectsScored,
	})
}
