package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/api/middleware"
	"github.com/repohandler/repohandler/internal/api/response"
	"github.com/repohandler/repohandler/internal/docstore"
	"github.com/repohandler/repohandler/internal/project"
)

// ProjectService is the subset of project.Service the team endpoints use.
type ProjectService interface {
	ListForTeam(ctx context.Context, teamID string) ([]project.Project, error)
	Create(ctx context.Context, teamID, email string, sub project.Submission) (*project.Project, error)
	Get(ctx context.Context, id, teamID string) (*project.Project, error)
	Update(ctx context.Context, id, teamID string, sub project.Submission) (*project.Project, error)
	AttachPDF(ctx context.Context, id, teamID string, data []byte, filename, contentType string) (*project.Attachment, error)
	Delete(ctx context.Context, id, teamID string) error
}

type featureBody struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text"`
}

type memberBody struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
}

type scoresBody struct {
	Innovation       float64 `json:"innovation"`
	Feasibility      float64 `json:"feasibility"`
	UIUX             float64 `json:"uiUx"`
	PromptEfficiency float64 `json:"promptEfficiency"`
}

type projectRequest struct {
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description"`
	GithubURL   string        `json:"githubUrl" validate:"required,httpurl"`
	TeamName    string        `json:"teamName" validate:"max=200"`
	Features    []featureBody `json:"features" validate:"dive"`
	TeamMembers []memberBody  `json:"teamMembers" validate:"dive"`
}

func (req projectRequest) toSubmission() project.Submission {
	sub := project.Submission{
		Name:        req.Name,
		Description: req.Description,
		GithubURL:   req.GithubURL,
		TeamName:    req.TeamName,
		Features:    make([]project.Feature, 0, len(req.Features)),
		TeamMembers: make([]project.Member, 0, len(req.TeamMembers)),
	}
	for _, f := range req.Features {
		sub.Features = append(sub.Features, project.Feature{ID: f.ID, Text: f.Text})
	}
	for _, m := range req.TeamMembers {
		sub.TeamMembers = append(sub.TeamMembers, project.Member{ID: m.ID, Name: m.Name})
	}
	return sub
}

type projectResponse struct {
	ID            string        `json:"id"`
	TeamID        string        `json:"teamId"`
	Email         string        `json:"email"`
	TeamName      string        `json:"teamName"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	GithubURL     string        `json:"githubUrl"`
	Features      []featureBody `json:"features"`
	TeamMembers   []memberBody  `json:"teamMembers"`
	PromptPDFName *string       `json:"promptPdfName"`
	PromptPDFURL  *string       `json:"promptPdfUrl"`
	SubmittedAt   string        `json:"submittedAt"`
	Scores        *scoresBody   `json:"scores"`
	TotalScore    *float64      `json:"totalScore"`
	SchemaVersion int           `json:"schemaVersion"`
}

func toScoresBody(s project.Scores) scoresBody {
	return scoresBody{
		Innovation:       s.Innovation,
		Feasibility:      s.Feasibility,
		UIUX:             s.UIUX,
		PromptEfficiency: s.PromptEfficiency,
	}
}

func toProjectResponse(p *project.Project) projectResponse {
	resp := projectResponse{
		ID:            p.ID,
		TeamID:        p.TeamID,
		Email:         p.Email,
		TeamName:      p.TeamName,
		Name:          p.Name,
		Description:   p.Description,
		GithubURL:     p.GithubURL,
		Features:      make([]featureBody, 0, len(p.Features)),
		TeamMembers:   make([]memberBody, 0, len(p.TeamMembers)),
		PromptPDFName: p.PromptPDFName,
		PromptPDFURL:  p.PromptPDFURL,
		SubmittedAt:   docstore.FormatTime(p.SubmittedAt),
		TotalScore:    p.TotalScore,
		SchemaVersion: p.SchemaVersion,
	}
	for _, f := range p.Features {
		resp.Features = append(resp.Features, featureBody{ID: f.ID, Text: f.Text})
	}
	for _, m := range p.TeamMembers {
		resp.TeamMembers = append(resp.TeamMembers, memberBody{ID: m.ID, Name: m.Name})
	}
	if p.Scores != nil {
		s := toScoresBody(*p.Scores)
		resp.Scores = &s
	}
	return resp
}

func toProjectResponses(ps []project.Project) []projectResponse {
	items := make([]projectResponse, 0, len(ps))
	for i := range ps {
		items = append(items, toProjectResponse(&ps[i]))
	}
	return items
}

type uploadResponse struct {
	Filename string `json:"filename"`
	BlobName string `json:"blobName"`
	URL      string `json:"url"`
}

// ProjectHandler handles the team-facing /projects endpoints. Every route
// expects TeamAuth to have run.
type ProjectHandler struct {
	svc            ProjectService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(svc ProjectService, maxUploadBytes int64, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// List handles GET /projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	projects, err := h.svc.ListForTeam(r.Context(), identity.TeamID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to list projects")
		return
	}

	response.JSON(w, http.StatusOK, toProjectResponses(projects))
}

// Create handles POST /projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.svc.Create(r.Context(), identity.TeamID, identity.Email, req.toSubmission())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to create project")
		return
	}

	response.JSON(w, http.StatusCreated, toProjectResponse(p))
}

// Get handles GET /projects/{id}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), identity.TeamID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to get project")
		return
	}

	response.JSON(w, http.StatusOK, toProjectResponse(p))
}

// Update handles PUT /projects/{id}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), identity.TeamID, req.toSubmission())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to update project")
		return
	}

	response.JSON(w, http.StatusOK, toProjectResponse(p))
}

// UploadPDF handles POST /projects/{id}/upload-pdf with a multipart "file" part.
func (h *ProjectHandler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	// room for multipart framing around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Err(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "File is too large", requestID)
			return
		}
		response.Err(w, http.StatusBadRequest, "MISSING_FILE", "A multipart file field named \"file\" is required", requestID)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_FILE", "Could not read uploaded file", requestID)
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		response.Err(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "File is too large", requestID)
		return
	}

	att, err := h.svc.AttachPDF(r.Context(), chi.URLParam(r, "id"), identity.TeamID,
		data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to upload file")
		return
	}

	response.JSON(w, http.StatusOK, uploadResponse{Filename: att.Filename, BlobName: att.BlobName, URL: att.URL})
}

// Delete handles DELETE /projects/{id}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), identity.TeamID); err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to delete project")
		return
	}

	response.NoContent(w)
}
