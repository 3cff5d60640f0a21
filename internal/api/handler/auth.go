package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/api/middleware"
	"github.com/repohandler/repohandler/internal/api/response"
	"github.com/repohandler/repohandler/internal/auth"
	"github.com/repohandler/repohandler/internal/team"
)

// TeamRegistry is the subset of team.Registry the auth endpoints use.
type TeamRegistry interface {
	CreateOrFetch(ctx context.Context, leaderEmail string) (*team.Team, bool, error)
	TeamLogin(teamID, email string) error
}

type generateTeamRequest struct {
	LeaderEmail string `json:"leaderEmail" validate:"required,email"`
}

type teamLoginRequest struct {
	TeamID string `json:"teamId"`
	Email  string `json:"email" validate:"required,email"`
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

type generateTeamResponse struct {
	TeamID  string `json:"teamId"`
	Email   string `json:"email"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

type teamLoginResponse struct {
	Token  string `json:"token"`
	TeamID string `json:"teamId"`
	Email  string `json:"email"`
}

type adminLoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// AuthHandler handles the /auth endpoints.
type AuthHandler struct {
	teams  TeamRegistry
	issuer auth.Issuer
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(teams TeamRegistry, issuer auth.Issuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{teams: teams, issuer: issuer, logger: logger}
}

// GenerateTeam handles POST /auth/generate-team. An email that already leads
// a team gets 409 with the existing team id and no token.
func (h *AuthHandler) GenerateTeam(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req generateTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, created, err := h.teams.CreateOrFetch(r.Context(), req.LeaderEmail)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to create team")
		return
	}

	if !created {
		response.JSON(w, http.StatusConflict, generateTeamResponse{
			TeamID:  t.TeamID,
			Email:   t.LeaderEmail,
			Message: "Team already exists for this email",
		})
		return
	}

	token, err := h.issuer.IssueTeamToken(t.TeamID, t.LeaderEmail)
	if err != nil {
		h.logger.Error("failed to issue team token", zap.Error(err), zap.String("requestId", requestID))
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", requestID)
		return
	}

	response.JSON(w, http.StatusOK, generateTeamResponse{
		TeamID:  t.TeamID,
		Email:   t.LeaderEmail,
		Token:   token,
		Message: "Team created successfully",
	})
}

// TeamLogin handles POST /auth/team-login.
func (h *AuthHandler) TeamLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req teamLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.teams.TeamLogin(req.TeamID, req.Email); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_TEAM_ID", "Invalid team ID", requestID)
		return
	}

	token, err := h.issuer.IssueTeamToken(req.TeamID, req.Email)
	if err != nil {
		h.logger.Error("failed to issue team token", zap.Error(err), zap.String("requestId", requestID))
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", requestID)
		return
	}

	response.JSON(w, http.StatusOK, teamLoginResponse{Token: token, TeamID: req.TeamID, Email: req.Email})
}

// AdminLogin handles POST /auth/admin-login.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req adminLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.issuer.IssueAdminToken(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid admin password", requestID)
			return
		}
		h.logger.Error("failed to issue admin token", zap.Error(err), zap.String("requestId", requestID))
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", requestID)
		return
	}

	response.JSON(w, http.StatusOK, adminLoginResponse{Token: token, Role: auth.RoleAdmin})
}
