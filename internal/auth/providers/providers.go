package providers

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProviderNotFound is returned for names missing from the registry.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrMissingAccessToken is returned by profile fetchers when the decoded
	// token response carries no usable token.
	ErrMissingAccessToken = errors.New("auth info has no access token")
)

// Family selects the flow that handles a provider.
type Family string

const (
	// OAuth1 is the three-legged request token, authorize, access token exchange.
	OAuth1 Family = "oauth1"
	// OAuth2 is the authorization code grant.
	OAuth2 Family = "oauth2"
	// OpenID delegates identity assertion to a federated login service.
	OpenID Family = "openid"
)

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	switch f {
	case OAuth1, OAuth2, OpenID:
		return true
	}
	return false
}

// OAuth2Endpoints locate an OAuth2 provider. AuthorizeURL may contain a {0}
// placeholder for the encoded query string; otherwise the query is appended.
type OAuth2Endpoints struct {
	AuthorizeURL string
	TokenURL     string
}

// OAuth1Endpoints locate an OAuth1 provider. AuthorizeURL follows the same
// placeholder rule as OAuth2Endpoints.
type OAuth1Endpoints struct {
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
}

// ProviderConfig is a registry entry. Exactly one of OAuth2 and OAuth1 is set
// for those families; OpenID carries neither.
type ProviderConfig struct {
	Name    string
	Family  Family
	OAuth2  *OAuth2Endpoints
	OAuth1  *OAuth1Endpoints
	Decoder Decoder
	Profile ProfileFetcher
}

// Credentials are the consumer key and secret registered with a provider.
// Scope only applies to OAuth2.
type Credentials struct {
	Key    string
	Secret string
	Scope  string
}

// RequestToken is the temporary OAuth1 credential held between init and callback.
type RequestToken struct {
	OAuthToken       string `json:"oauth_token"`
	OAuthTokenSecret string `json:"oauth_token_secret"`
}

// AuthInfo is the decoded token endpoint response.
type AuthInfo map[string]interface{}

// String returns the value at key when it is a string.
func (a AuthInfo) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// UserData is the provider specific profile of the signed in user.
type UserData map[string]interface{}

// String returns the value at key when it is a string.
func (u UserData) String(key string) string {
	s, _ := u[key].(string)
	return s
}

// ProfileFetcher turns a decoded token response into a user profile.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, info AuthInfo, creds Credentials) (UserData, error)
}

// StatusError is returned when a provider endpoint answers with an unexpected status.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.Endpoint)
}

// DecodeError is returned when a provider response cannot be parsed.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode %s response: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
