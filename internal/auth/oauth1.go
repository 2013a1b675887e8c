package auth

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/benbjohnson/clock"
	"github.com/dghubble/oauth1"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
	"github.com/buzzfeed/authdispatch/internal/pkg/signing"
	"github.com/buzzfeed/authdispatch/internal/pkg/transport"
)

// OAuth1Flow runs the three-legged request token, authorize, access token exchange.
type OAuth1Flow struct {
	Fetcher  transport.Fetcher
	TokenKey string

	// Clock and Noncer override the signing defaults when set.
	Clock  clock.Clock
	Noncer oauth1.Noncer
}

var _ Flow = &OAuth1Flow{}

// NewOAuth1Flow returns an OAuth1Flow with the option funcs applied.
func NewOAuth1Flow(fetcher transport.Fetcher, optFuncs ...func(*OAuth1Flow) error) (*OAuth1Flow, error) {
	f := &OAuth1Flow{
		Fetcher:  fetcher,
		TokenKey: "req_token",
	}

	for _, opt := range optFuncs {
		err := opt(f)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Family fulfills the Flow interface.
func (f *OAuth1Flow) Family() providers.Family {
	return providers.OAuth1
}

func (f *OAuth1Flow) client(c *Call, optFuncs ...func(*signing.Client) error) (*signing.Client, error) {
	client, err := signing.NewClient(c.Credentials.Key, c.Credentials.Secret, f.Fetcher, optFuncs...)
	if err != nil {
		return nil, err
	}
	if f.Clock != nil {
		client.Clock = f.Clock
	}
	if f.Noncer != nil {
		client.Noncer = f.Noncer
	}
	return client, nil
}

// Init obtains a request token and returns the provider's authorize url for
// it. The request token is held in the session until the callback.
func (f *OAuth1Flow) Init(c *Call) (string, error) {
	name := c.Provider.Name
	if c.Credentials.Key == "" || c.Credentials.Secret == "" {
		return "", newFlowError(ErrConfiguration, name, "missing consumer key or secret", nil)
	}
	endpoints := c.Provider.OAuth1
	if endpoints == nil || endpoints.RequestTokenURL == "" || endpoints.AuthorizeURL == "" {
		return "", newFlowError(ErrConfiguration, name, "missing request token or authorize url", nil)
	}
	if c.CallbackURL == "" {
		return "", newFlowError(ErrConfiguration, name, "missing callback url", nil)
	}
	if c.Provider.Decoder == nil {
		return "", newFlowError(ErrConfiguration, name, "missing decoder", nil)
	}

	client, err := f.client(c, signing.SetCallback(c.CallbackURL))
	if err != nil {
		return "", newFlowError(ErrConfiguration, name, "could not build signing client", err)
	}

	status, body, err := client.Request(c.Context, http.MethodGet, endpoints.RequestTokenURL, nil)
	if err != nil {
		return "", newFlowError(ErrTransport, name, "request token request failed", err)
	}
	if status != http.StatusOK {
		log.NewLogEntry().WithProvider(name).WithEndpoint(endpoints.RequestTokenURL).WithHTTPStatus(
			status).WithResponseBody(body).Info("request token rejected")
		return "", newFlowError(ErrProviderRejected, name, "request token rejected",
			&providers.StatusError{Endpoint: endpoints.RequestTokenURL, Code: status})
	}

	info, err := c.Provider.Decoder(body)
	if err != nil {
		return "", newFlowError(ErrMalformedResponse, name, "could not decode request token", err)
	}
	token := providers.RequestToken{
		OAuthToken:       info.String("oauth_token"),
		OAuthTokenSecret: info.String("oauth_token_secret"),
	}
	if token.OAuthToken == "" {
		return "", newFlowError(ErrProviderRejected, name, "no request token", nil)
	}

	params := url.Values{}
	params.Set("oauth_token", token.OAuthToken)
	params.Set("oauth_callback", c.CallbackURL)
	redirectURL, err := providers.ExpandAuthorizeURL(endpoints.AuthorizeURL, params)
	if err != nil {
		return "", newFlowError(ErrConfiguration, name, "invalid authorize url", err)
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return "", newFlowError(ErrInternal, name, "could not store request token", err)
	}
	c.Session.Set(f.TokenKey, string(raw))
	return redirectURL, nil
}

// Callback exchanges the stored request token and the verifier for an access
// token. The request token is removed from the session on first read, so a
// replayed callback fails before any outbound call.
func (f *OAuth1Flow) Callback(c *Call) (providers.UserData, providers.AuthInfo, error) {
	name := c.Provider.Name

	raw, ok := c.Session.Pop(f.TokenKey)
	if !ok || raw == "" {
		return nil, nil, newFlowError(ErrForgery, name, "no request token", nil)
	}
	var token providers.RequestToken
	if err := json.Unmarshal([]byte(raw), &token); err != nil || token.OAuthToken == "" {
		return nil, nil, newFlowError(ErrForgery, name, "no request token", err)
	}

	verifier := c.Params.Get("oauth_verifier")
	if verifier == "" {
		return nil, nil, newFlowError(ErrProviderRejected, name, "no verifier", nil)
	}

	if c.Credentials.Key == "" || c.Credentials.Secret == "" {
		return nil, nil, newFlowError(ErrConfiguration, name, "missing consumer key or secret", nil)
	}
	endpoints := c.Provider.OAuth1
	if endpoints == nil || endpoints.AccessTokenURL == "" {
		return nil, nil, newFlowError(ErrConfiguration, name, "missing access token url", nil)
	}
	if c.Provider.Decoder == nil || c.Provider.Profile == nil {
		return nil, nil, newFlowError(ErrConfiguration, name, "missing decoder or profile", nil)
	}

	client, err := f.client(c,
		signing.SetToken(token.OAuthToken, token.OAuthTokenSecret),
		signing.SetVerifier(verifier),
	)
	if err != nil {
		return nil, nil, newFlowError(ErrConfiguration, name, "could not build signing client", err)
	}

	status, body, err := client.Request(c.Context, http.MethodPost, endpoints.AccessTokenURL, nil)
	if err != nil {
		return nil, nil, newFlowError(ErrTransport, name, "access token request failed", err)
	}
	if status != http.StatusOK {
		log.NewLogEntry().WithProvider(name).WithEndpoint(endpoints.AccessTokenURL).WithHTTPStatus(
			status).WithResponseBody(body).Info("access token rejected")
		return nil, nil, newFlowError(ErrProviderRejected, name, "access token rejected",
			&providers.StatusError{Endpoint: endpoints.AccessTokenURL, Code: status})
	}

	info, err := c.Provider.Decoder(body)
	if err != nil {
		return nil, nil, newFlowError(ErrMalformedResponse, name, "could not decode access token", err)
	}

	user, err := c.Provider.Profile.FetchProfile(c.Context, info, c.Credentials)
	if err != nil {
		return nil, nil, classify(name, "could not fetch profile", err)
	}
	return user, info, nil
}
