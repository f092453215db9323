// Package storage defines the client-side persistence contracts.
package storage

import (
	"context"
	"time"
)

// SessionStore хранит текущую сессию клиента.
// Хранится одна сессия: повторный login перезаписывает предыдущую.
type SessionStore interface {
	// SaveSession stores the session, replacing any previous one.
	SaveSession(ctx context.Context, s *Session) error

	// GetSession returns ErrSessionNotFound if nobody is logged in.
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context) error
}

// Session is the persisted login state.
type Session struct {
	ServerURL    string `json:"server_url"`
	Username     string `json:"username"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is the access token expiry, unix seconds.
	ExpiresAt int64 `json:"expires_at"`
	UserID    int64 `json:"user_id,omitempty"`
}

// AccessExpired reports whether the access token has expired at now.
func (s *Session) AccessExpired(now time.Time) bool {
	return s.ExpiresAt > 0 && !now.Before(time.Unix(s.ExpiresAt, 0))
}
