package models

import "time"

// Session is an authenticated device's server-side session. The negotiated
// key is stored for per-request signature verification and must never be
// serialized back to the client after creation; handlers return Stripped()
// copies.
type Session struct {
	ID       string      `json:"id"`
	Account  string      `json:"account"`
	Key      []byte      `json:"key,omitempty"`
	Device   *DeviceInfo `json:"device,omitempty"`
	Created  time.Time   `json:"created"`
	Updated  time.Time   `json:"updated"`
	LastUsed time.Time   `json:"lastUsed"`
	Expires  time.Time   `json:"expires"`
}

func (s *Session) Kind() string     { return KindSession }
func (s *Session) ObjectID() string { return s.ID }

// Expired reports whether the session has passed its expiry at time now.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expires.IsZero() && now.After(s.Expires)
}

// Info returns the secret-free summary kept on the owning account.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:       s.ID,
		Device:   s.Device,
		Created:  s.Created,
		Updated:  s.Updated,
		LastUsed: s.LastUsed,
		Expires:  s.Expires,
	}
}

// Stripped returns a copy safe to hand back to a client: identical except
// that the session key is absent.
func (s *Session) Stripped() *Session {
	c := *s
	c.Key = nil
	return &c
}
