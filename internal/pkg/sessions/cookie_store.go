package sessions

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/buzzfeed/authdispatch/internal/pkg/aead"
	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
)

var _ Store = &CookieStore{}

// CookieStore keeps the whole session in a single encrypted cookie.
type CookieStore struct {
	Name           string
	CookieExpire   time.Duration
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieDomain   string
	CookieCipher   aead.Cipher
}

// CreateMiscreantCookieCipher creates a new miscreant cipher with the cookie secret
func CreateMiscreantCookieCipher(cookieSecret []byte) func(s *CookieStore) error {
	return func(s *CookieStore) error {
		cipher, err := aead.NewMiscreantCipher(cookieSecret)
		if err != nil {
			return fmt.Errorf("miscreant cookie-secret error: %s", err.Error())
		}
		s.CookieCipher = cipher
		return nil
	}
}

// NewCookieStore returns a new CookieStore with the option funcs applied.
func NewCookieStore(cookieName string, optFuncs ...func(*CookieStore) error) (*CookieStore, error) {
	c := &CookieStore{
		Name:           cookieName,
		CookieSecure:   true,
		CookieHTTPOnly: true,
		CookieExpire:   168 * time.Hour,
	}

	for _, f := range optFuncs {
		err := f(c)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (s *CookieStore) makeCookie(req *http.Request, value string, expiration time.Duration, now time.Time) *http.Cookie {
	domain := req.Host
	if h, _, err := net.SplitHostPort(domain); err == nil {
		domain = h
	}
	if s.CookieDomain != "" {
		if !strings.HasSuffix(domain, s.CookieDomain) {
			log.NewLogEntry().WithCookieDomain(s.CookieDomain).WithEndpoint(domain).Warn(
				"using configured cookie domain for non-matching request host")
		}
		domain = s.CookieDomain
	}

	return &http.Cookie{
		Name:     s.Name,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		HttpOnly: s.CookieHTTPOnly,
		Secure:   s.CookieSecure,
		Expires:  now.Add(expiration),
	}
}

func (s *CookieStore) setCookie(rw http.ResponseWriter, req *http.Request, val string) {
	http.SetCookie(rw, s.makeCookie(req, val, s.CookieExpire, time.Now()))
}

// Clear expires the session cookie.
func (s *CookieStore) Clear(rw http.ResponseWriter, req *http.Request) {
	http.SetCookie(rw, s.makeCookie(req, "", time.Hour*-1, time.Now()))
}

// Load decrypts the session carried in the request's cookie.
func (s *CookieStore) Load(req *http.Request) (*Session, error) {
	c, err := req.Cookie(s.Name)
	if err == http.ErrNoCookie {
		return NewSession(), nil
	}
	if err != nil {
		return nil, err
	}

	session := NewSession()
	err = s.CookieCipher.Unmarshal(s.Name, c.Value, &session.Values)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Save encrypts the session values into the cookie. An empty session expires the cookie.
func (s *CookieStore) Save(rw http.ResponseWriter, req *http.Request, session *Session) error {
	if session.Empty() {
		s.Clear(rw, req)
		return nil
	}

	value, err := s.CookieCipher.Marshal(s.Name, session.Values)
	if err != nil {
		return err
	}

	s.setCookie(rw, req, value)
	return nil
}
