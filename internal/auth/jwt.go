package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/matheus3301/parley/internal/chat"
)

var (
	ErrMissingSubject = errors.New("token has no subject claim")
	ErrExpiredToken   = errors.New("token has expired")
)

// Claims is the subset of the server's access token the client reads.
type Claims struct {
	UserID   string `json:"sub"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a bearer token without verifying its signature. The
// client never holds the signing key; the server rejects forged tokens with 401.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// SessionFromToken builds a session from a raw token. userID overrides the
// token's subject when the server issues opaque tokens.
func SessionFromToken(token, userID string) (chat.Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return chat.Session{}, errors.New("empty token")
	}
	if userID != "" {
		return chat.Session{UserID: userID, Token: token}, nil
	}

	claims, err := ParseClaims(token)
	if err != nil {
		return chat.Session{}, err
	}
	if claims.UserID == "" {
		return chat.Session{}, ErrMissingSubject
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return chat.Session{}, ErrExpiredToken
	}
	return chat.Session{UserID: claims.UserID, Token: token}, nil
}
