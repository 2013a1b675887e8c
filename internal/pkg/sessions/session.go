package sessions

import (
	"errors"
	"net/http"
)

var (
	// ErrSessionNotFound is returned by server-side stores when the id carried by the
	// session cookie no longer maps to stored values.
	ErrSessionNotFound = errors.New("session not found")
)

// Store loads and persists the Session belonging to the browser that made a request.
type Store interface {
	// Load returns the request's session. A request without a session cookie yields
	// a new, empty session and a nil error.
	Load(*http.Request) (*Session, error)
	// Save persists s, writing whatever cookie is needed to find it again.
	Save(http.ResponseWriter, *http.Request, *Session) error
	// Clear drops the session and expires its cookie.
	Clear(http.ResponseWriter, *http.Request)
}

// Session is a flat key/value bag scoped to one browser. It survives the round
// trip to an identity provider and back.
type Session struct {
	// ID identifies the session in server-side stores. Cookie-only stores leave it empty.
	ID     string
	Values map[string]string

	modified bool
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{Values: map[string]string{}}
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Set stores value under key, replacing any earlier value.
func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = map[string]string{}
	}
	s.Values[key] = value
	s.modified = true
}

// Pop removes key and returns the value it held. The key is gone after the first
// call whether or not it was present.
func (s *Session) Pop(key string) (string, bool) {
	v, ok := s.Values[key]
	if ok {
		delete(s.Values, key)
		s.modified = true
	}
	return v, ok
}

// Modified reports whether Set or a successful Pop changed the session since it was loaded.
func (s *Session) Modified() bool {
	return s.modified
}

// Empty reports whether the session holds no values.
func (s *Session) Empty() bool {
	return len(s.Values) == 0
}
