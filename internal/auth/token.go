// ABOUTME: Bearer tokens for operator tooling, an alternative to the signed-header triple
// ABOUTME: HS256 keyed with the shared API credential; claims carry an optional chat identity

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer is stamped into every minted token and required on verify,
// so tokens minted by other services sharing the secret are rejected.
const tokenIssuer = "repo-relay"

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// TokenVerifier turns a bearer token into a request identity.
type TokenVerifier interface {
	Verify(tokenString string) (*Identity, error)
}

// relayClaims is the token payload. ChatID, when present, lets operator
// tooling act as that chat identity against the directory-guarded
// endpoints; without it the token only proves who the operator is.
type relayClaims struct {
	ChatID string `json:"chat_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier mints and verifies relay bearer tokens.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier keyed with the given secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the token and returns the bearer identity carried in
// its claims.
func (v *JWTVerifier) Verify(tokenString string) (*Identity, error) {
	claims := &relayClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return &Identity{Method: "bearer", Subject: claims.Subject, ChatID: claims.ChatID}, nil
}

// Generate mints a token for subject. A non-empty chatID binds the token
// to that chat identity.
func (v *JWTVerifier) Generate(subject, chatID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := &relayClaims{
		ChatID: chatID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
