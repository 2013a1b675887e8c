// Package federated exposes the identity of a user who signed in through a
// federated login service sitting in front of this process.
package federated

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
)

// ErrNoLoginURL is returned when no login service has been configured.
var ErrNoLoginURL = errors.New("no federated login url configured")

// User is the identity asserted by the login service.
type User struct {
	FederatedIdentity string
	FederatedProvider string
	Nickname          string
	Email             string
}

// Identity is the login service as seen by the auth flows.
type Identity interface {
	CreateLoginURL(dest, identity string) (string, error)
	CurrentUser(ctx context.Context) (*User, error)
}

type contextKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFromContext returns the user stored by WithUser, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(contextKey{}).(*User)
	return u
}

// HeaderIdentity trusts identity headers set by an upstream login proxy. A
// request is only trusted when a login service is configured and the request
// carries the shared secret the proxy adds; headers on any other request are
// ignored.
type HeaderIdentity struct {
	LoginURL string
	Secret   string

	SecretHeader   string
	IdentityHeader string
	ProviderHeader string
	NicknameHeader string
	EmailHeader    string
}

var _ Identity = &HeaderIdentity{}

// NewHeaderIdentity returns a HeaderIdentity with the default header names.
func NewHeaderIdentity(loginURL string, optFuncs ...func(*HeaderIdentity) error) (*HeaderIdentity, error) {
	h := &HeaderIdentity{
		LoginURL:       loginURL,
		SecretHeader:   "X-Federated-Secret",
		IdentityHeader: "X-Federated-Identity",
		ProviderHeader: "X-Federated-Provider",
		NicknameHeader: "X-Forwarded-User",
		EmailHeader:    "X-Forwarded-Email",
	}

	for _, f := range optFuncs {
		err := f(h)
		if err != nil {
			return nil, err
		}
	}

	if h.LoginURL != "" && h.Secret == "" {
		return nil, errors.New("a shared secret is required to trust identity headers")
	}
	return h, nil
}

// SetSecret sets the shared secret the login proxy sends in SecretHeader.
func SetSecret(secret string) func(*HeaderIdentity) error {
	return func(h *HeaderIdentity) error {
		h.Secret = secret
		return nil
	}
}

// CreateLoginURL points the user at the login service, asking it to assert
// identity and come back to dest.
func (h *HeaderIdentity) CreateLoginURL(dest, identity string) (string, error) {
	if h.LoginURL == "" {
		return "", ErrNoLoginURL
	}
	u, err := url.Parse(h.LoginURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("continue", dest)
	q.Set("openid_identifier", identity)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CurrentUser returns the user placed on ctx by Middleware, or nil. Without a
// login service no user is ever asserted.
func (h *HeaderIdentity) CurrentUser(ctx context.Context) (*User, error) {
	if h.LoginURL == "" {
		return nil, ErrNoLoginURL
	}
	return UserFromContext(ctx), nil
}

// trusted reports whether req came through the login proxy.
func (h *HeaderIdentity) trusted(req *http.Request) bool {
	if h.LoginURL == "" || h.Secret == "" {
		return false
	}
	got := req.Header.Get(h.SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) == 1
}

// Middleware copies the identity headers of trusted requests onto the request context.
func (h *HeaderIdentity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		identity := req.Header.Get(h.IdentityHeader)
		if identity != "" && h.trusted(req) {
			u := &User{
				FederatedIdentity: identity,
				FederatedProvider: req.Header.Get(h.ProviderHeader),
				Nickname:          req.Header.Get(h.NicknameHeader),
				Email:             req.Header.Get(h.EmailHeader),
			}
			req = req.WithContext(WithUser(req.Context(), u))
		}
		next.ServeHTTP(rw, req)
	})
}
