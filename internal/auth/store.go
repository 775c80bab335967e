// Package auth persists the bearer token and user record between runs.
// There is no state machine here: pure reads and writes through the storage
// port, plus a client-side look at the token's expiry claim.
package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"estatesync/internal/domain/entity"
	"estatesync/internal/infrastructure/storage"
	"estatesync/pkg/logger"
)

const sessionKey = "estatesync:auth"

type Store struct {
	store storage.Store
}

func NewStore(store storage.Store) *Store {
	return &Store{store: store}
}

// Load returns the persisted session, or nil when none exists or it cannot
// be decoded.
func (s *Store) Load(ctx context.Context) *entity.AuthSession {
	data, ok, err := s.store.Get(ctx, sessionKey)
	if err != nil {
		logger.Warn("auth: load session: %v", err)
		return nil
	}
	if !ok {
		return nil
	}

	var session entity.AuthSession
	if err := json.Unmarshal(data, &session); err != nil {
		logger.Warn("auth: corrupt session, discarding: %v", err)
		s.store.Delete(ctx, sessionKey)
		return nil
	}
	if session.Token == "" {
		return nil
	}
	return &session
}

func (s *Store) Save(ctx context.Context, session entity.AuthSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, sessionKey, data)
}

func (s *Store) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, sessionKey)
}

// TokenExpiry reads the exp claim of a bearer token without verifying the
// signature. Verification is the server's job; this only lets callers skip
// fetches that are certain to come back 401.
func TokenExpiry(token string) (time.Time, bool) {
	claims := parseClaims(token)
	if claims == nil {
		return time.Time{}, false
	}
	switch exp := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0), true
	case json.Number:
		n, err := exp.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}

// TokenSubject reads the sub claim, which the backend sets to the user id.
func TokenSubject(token string) string {
	claims := parseClaims(token)
	if claims == nil {
		return ""
	}
	subject, _ := claims["sub"].(string)
	return subject
}

func parseClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

// IsExpired reports whether the token carries an exp claim in the past.
// Tokens without a readable expiry are treated as live.
func IsExpired(token string) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return time.Now().After(exp)
}
