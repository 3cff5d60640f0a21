package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jwtIssuer = "repohandler"

type claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer issues HS256-signed tokens that expire after ttl.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	admin  AdminCredentials
	now    func() time.Time
}

// NewJWTIssuer creates a JWTIssuer. secret must not be empty.
func NewJWTIssuer(secret string, ttl time.Duration, admin AdminCredentials) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, admin: admin, now: time.Now}, nil
}

func (j *JWTIssuer) IssueTeamToken(teamID, email string) (string, error) {
	return j.sign(teamID, email, RoleTeam)
}

func (j *JWTIssuer) IssueAdminToken(password string) (string, error) {
	if !j.admin.Verify(password) {
		return "", ErrInvalidCredentials
	}
	return j.sign(RoleAdmin, "", RoleAdmin)
}

func (j *JWTIssuer) sign(subject, email, role string) (string, error) {
	now := j.now()
	c := claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    jwtIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

func (j *JWTIssuer) parse(header string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(StripBearer(header), &c, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (j *JWTIssuer) ParseTeamToken(header string) (*Identity, error) {
	if header == "" {
		return nil, ErrMissingHeader
	}

	c, err := j.parse(header)
	if err != nil || c.Role != RoleTeam || c.Subject == "" || c.Email == "" {
		return nil, ErrMalformedToken
	}

	return &Identity{TeamID: c.Subject, Email: c.Email, Role: RoleTeam}, nil
}

func (j *JWTIssuer) ParseAdminToken(header string) (*Identity, error) {
	if header == "" {
		return nil, ErrMissingHeader
	}

	c, err := j.parse(header)
	if err != nil || c.Role != RoleAdmin {
		return nil, ErrForbidden
	}

	return &Identity{Role: RoleAdmin}, nil
}
