package auth

import (
	"context"
	"net/url"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
)

// Session is the per-browser store a flow parks state in across the redirect.
type Session interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Pop(key string) (string, bool)
}

// Outcomes are the host's terminal callbacks. Every dispatch ends in exactly
// one of them or in a redirect.
type Outcomes interface {
	ProviderNotSupported(provider string)
	AuthError(provider, message string)
	SignIn(user providers.UserData, info providers.AuthInfo, provider string)
}

// Request is what the host hands the dispatcher for one HTTP request.
type Request struct {
	Context  context.Context
	Params   url.Values
	Session  Session
	Redirect func(url string)
	Outcomes Outcomes

	// IdentityURL is an explicit OpenID identity. Empty falls back to the
	// identity_url parameter.
	IdentityURL string
}

// Call is a single flow step: the request plus everything resolved for the provider.
type Call struct {
	*Request

	Provider    providers.ProviderConfig
	Credentials providers.Credentials
	CallbackURL string
}

// Flow is one protocol family's state machine. Flows never redirect or invoke
// outcomes; they return a redirect url, a result, or a *FlowError.
type Flow interface {
	Family() providers.Family
	Init(c *Call) (string, error)
	Callback(c *Call) (providers.UserData, providers.AuthInfo, error)
}

// CredentialsProvider supplies consumer credentials by provider name.
type CredentialsProvider interface {
	Credentials(provider string) (providers.Credentials, bool)
}

// CredentialsMap is a CredentialsProvider backed by a map.
type CredentialsMap map[string]providers.Credentials

// Credentials fulfills the CredentialsProvider interface.
func (m CredentialsMap) Credentials(provider string) (providers.Credentials, bool) {
	c, ok := m[provider]
	return c, ok
}

// CallbackURLFunc returns the absolute callback url for a provider.
type CallbackURLFunc func(provider string) string
