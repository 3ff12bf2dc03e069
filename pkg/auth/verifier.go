package auth

import (
	"strings"

	"github.com/angelmondragon/cafequeue-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/google/uuid"
)

// Verifier resolves bearer tokens into identities.
type Verifier struct {
	cfg config.JWTConfig
}

// NewVerifier builds a token verifier bound to the JWT settings.
func NewVerifier(cfg config.JWTConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// VerifyToken returns the user id carried by a valid token.
func (v *Verifier) VerifyToken(token string) (uuid.UUID, error) {
	identity, err := v.Verify(token)
	if err != nil {
		return uuid.Nil, err
	}
	return identity.UserID, nil
}

// Verify validates the token and returns the full identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing access token")
	}
	claims, err := ParseAccessToken(v.cfg, token)
	if err != nil {
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	if claims.UserID == uuid.Nil || !claims.Role.IsValid() {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "access token missing identity")
	}
	return Identity{UserID: claims.UserID, Role: claims.Role}, nil
}
