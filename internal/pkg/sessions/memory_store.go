package sessions

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

var _ Store = &MemoryStore{}

// MemoryStore keeps session values in process memory. It suits single-instance
// deployments and tests; values are lost on restart.
type MemoryStore struct {
	CookieStore

	cache *gocache.Cache
}

// NewMemoryStore returns a MemoryStore whose entries expire after the cookie expiry.
func NewMemoryStore(cookieName string, optFuncs ...func(*MemoryStore) error) (*MemoryStore, error) {
	m := &MemoryStore{
		CookieStore: CookieStore{
			Name:           cookieName,
			CookieSecure:   true,
			CookieHTTPOnly: true,
			CookieExpire:   168 * time.Hour,
		},
	}

	for _, f := range optFuncs {
		err := f(m)
		if err != nil {
			return nil, err
		}
	}

	m.cache = gocache.New(m.CookieExpire, time.Minute)
	return m, nil
}

// Load returns a copy of the values stored for the request's session id.
func (m *MemoryStore) Load(req *http.Request) (*Session, error) {
	c, err := req.Cookie(m.Name)
	if err == http.ErrNoCookie {
		return NewSession(), nil
	}
	if err != nil {
		return nil, err
	}

	v, ok := m.cache.Get(c.Value)
	if !ok {
		return nil, ErrSessionNotFound
	}

	session := &Session{ID: c.Value, Values: copyValues(v.(map[string]string))}
	return session, nil
}

// Save stores a copy of the session values.
func (m *MemoryStore) Save(rw http.ResponseWriter, req *http.Request, session *Session) error {
	if session.Empty() {
		if session.ID != "" {
			m.cache.Delete(session.ID)
		}
		m.CookieStore.Clear(rw, req)
		return nil
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	m.cache.Set(session.ID, copyValues(session.Values), gocache.DefaultExpiration)
	m.setCookie(rw, req, session.ID)
	return nil
}

// Clear deletes the stored values and expires the cookie.
func (m *MemoryStore) Clear(rw http.ResponseWriter, req *http.Request) {
	if c, err := req.Cookie(m.Name); err == nil {
		m.cache.Delete(c.Value)
	}
	m.CookieStore.Clear(rw, req)
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
