package models

import "time"

// Session is the credential the chat backend hands out for a logged-in browser session.
type Session struct {
	AccessToken string    `json:"accessToken"`
	Expires     time.Time `json:"expires"`
	UserID      string    `json:"userId,omitempty"`
	Email       string    `json:"email,omitempty"`
}

// IsExpired checks if the session has expired. A zero expiry never expires.
func (s *Session) IsExpired() bool {
	if s.Expires.IsZero() {
		return false
	}
	return time.Now().After(s.Expires)
}
