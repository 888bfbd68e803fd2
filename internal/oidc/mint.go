package oidc

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the subset of claims the service reads from a bearer token.
type Identity struct {
	Subject     string
	Email       string
	Name        string
	WorkspaceID string
	Plan        string
	Audience    string
}

// MintHS256 signs a token that NewHMACVerifier with the same secret accepts.
// It serves local development and integration tests.
func MintHS256(secret []byte, id Identity, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is empty")
	}
	if id.Subject == "" {
		return "", errors.New("subject is required")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": id.Subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	for k, v := range map[string]string{
		"email":        id.Email,
		"name":         id.Name,
		"workspace_id": id.WorkspaceID,
		"plan":         id.Plan,
		"aud":          id.Audience,
	} {
		if v != "" {
			claims[k] = v
		}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
