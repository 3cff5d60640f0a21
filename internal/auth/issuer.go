package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminSentinel is the fixed admin token handed out by PlainIssuer.
const AdminSentinel = "admin_token"

var (
	// ErrMissingHeader is returned when no Authorization header was sent.
	ErrMissingHeader = errors.New("missing authorization header")
	// ErrMalformedToken is returned when a team token cannot be decoded.
	ErrMalformedToken = errors.New("invalid or expired token")
	// ErrInvalidCredentials is returned when the admin password is wrong.
	ErrInvalidCredentials = errors.New("invalid admin password")
	// ErrForbidden is returned when a token is not an admin token.
	ErrForbidden = errors.New("admin access required")
)

// Issuer turns credentials into bearer tokens and parses them back. Callers
// pass the raw Authorization header value to the Parse methods.
type Issuer interface {
	IssueTeamToken(teamID, email string) (string, error)
	IssueAdminToken(password string) (string, error)
	ParseTeamToken(header string) (*Identity, error)
	ParseAdminToken(header string) (*Identity, error)
}

// StripBearer removes an optional "Bearer " prefix.
func StripBearer(header string) string {
	return strings.TrimPrefix(header, "Bearer ")
}

// AdminCredentials checks admin passwords against either a plaintext value or
// a bcrypt hash. The hash wins when both are set.
type AdminCredentials struct {
	Password     string
	PasswordHash string
}

// Verify reports whether password matches.
func (c AdminCredentials) Verify(password string) bool {
	if c.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	}
	if c.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) == 1
}

// PlainIssuer issues unsigned "<teamId>:<email>" team tokens and a fixed admin
// sentinel. Anyone who can guess a team id and email can impersonate the team.
type PlainIssuer struct {
	admin AdminCredentials
}

// NewPlainIssuer creates a PlainIssuer.
func NewPlainIssuer(admin AdminCredentials) *PlainIssuer {
	return &PlainIssuer{admin: admin}
}

func (p *PlainIssuer) IssueTeamToken(teamID, email string) (string, error) {
	return teamID + ":" + email, nil
}

func (p *PlainIssuer) IssueAdminToken(password string) (string, error) {
	if !p.admin.Verify(password) {
		return "", ErrInvalidCredentials
	}
	return AdminSentinel, nil
}

func (p *PlainIssuer) ParseTeamToken(header string) (*Identity, error) {
	if header == "" {
		return nil, ErrMissingHeader
	}

	parts := strings.Split(StripBearer(header), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, ErrMalformedToken
	}

	return &Identity{TeamID: parts[0], Email: parts[1], Role: RoleTeam}, nil
}

func (p *PlainIssuer) ParseAdminToken(header string) (*Identity, error) {
	if header == "" {
		return nil, ErrMissingHeader
	}
	if StripBearer(header) != AdminSentinel {
		return nil, ErrForbidden
	}
	return &Identity{Role: RoleAdmin}, nil
}
