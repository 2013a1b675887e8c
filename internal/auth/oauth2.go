package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
	"github.com/buzzfeed/authdispatch/internal/pkg/csrf"
	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
	"github.com/buzzfeed/authdispatch/internal/pkg/transport"
)

// OAuth2Flow runs the authorization code grant.
type OAuth2Flow struct {
	Fetcher transport.Fetcher
	// CSRF enables the state parameter when set.
	CSRF       *csrf.Codec
	StateKey   string
	StateParam string
}

var _ Flow = &OAuth2Flow{}

// NewOAuth2Flow returns an OAuth2Flow with the option funcs applied. CSRF
// protection is off until SetCSRFCodec is given.
func NewOAuth2Flow(fetcher transport.Fetcher, optFuncs ...func(*OAuth2Flow) error) (*OAuth2Flow, error) {
	f := &OAuth2Flow{
		Fetcher:    fetcher,
		StateKey:   "oauth2_state",
		StateParam: "state",
	}

	for _, opt := range optFuncs {
		err := opt(f)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// SetCSRFCodec turns on state parameter checks with codec.
func SetCSRFCodec(codec *csrf.Codec) func(*OAuth2Flow) error {
	return func(f *OAuth2Flow) error {
		f.CSRF = codec
		return nil
	}
}

// SetStateParam sets the query parameter that carries the csrf token.
func SetStateParam(param string) func(*OAuth2Flow) error {
	return func(f *OAuth2Flow) error {
		f.StateParam = param
		return nil
	}
}

// Family fulfills the Flow interface.
func (f *OAuth2Flow) Family() providers.Family {
	return providers.OAuth2
}

// Init builds the provider's authorize url. With CSRF on, the issued state
// token is parked in the session under StateKey.
func (f *OAuth2Flow) Init(c *Call) (string, error) {
	name := c.Provider.Name
	if c.Credentials.Key == "" || c.Credentials.Secret == "" {
		return "", newFlowError(ErrConfiguration, name, "missing consumer key or secret", nil)
	}
	if c.Provider.OAuth2 == nil || c.Provider.OAuth2.AuthorizeURL == "" {
		return "", newFlowError(ErrConfiguration, name, "missing authorize url", nil)
	}
	if c.CallbackURL == "" {
		return "", newFlowError(ErrConfiguration, name, "missing callback url", nil)
	}

	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.Credentials.Key)
	params.Set("redirect_uri", c.CallbackURL)
	if c.Credentials.Scope != "" {
		params.Set("scope", c.Credentials.Scope)
	}

	var state string
	if f.CSRF != nil {
		token, err := f.CSRF.Generate()
		if err != nil {
			return "", newFlowError(ErrInternal, name, "could not generate state", err)
		}
		state = token
		params.Set(f.StateParam, state)
	}

	redirectURL, err := providers.ExpandAuthorizeURL(c.Provider.OAuth2.AuthorizeURL, params)
	if err != nil {
		return "", newFlowError(ErrConfiguration, name, "invalid authorize url", err)
	}

	if state != "" {
		c.Session.Set(f.StateKey, state)
	}
	return redirectURL, nil
}

// Callback checks the provider's answer, exchanges the code for a token and
// fetches the user profile. A provider error or failed state check stops the
// flow before any outbound call.
func (f *OAuth2Flow) Callback(c *Call) (providers.UserData, providers.AuthInfo, error) {
	name := c.Provider.Name
	if reason := c.Params.Get("error"); reason != "" {
		log.NewLogEntry().WithProvider(name).WithURLParam("error").Info(reason)
		return nil, nil, newFlowError(ErrProviderRejected, name, "OAuth2 authentication failed", nil)
	}

	if f.CSRF != nil {
		expected, _ := c.Session.Pop(f.StateKey)
		if !f.CSRF.Validate(expected, c.Params.Get(f.StateParam)) {
			return nil, nil, newFlowError(ErrForgery, name, "invalid csrf token", nil)
		}
	}

	code := c.Params.Get("code")
	if code == "" {
		return nil, nil, newFlowError(ErrProviderRejected, name, "no code", nil)
	}

	if c.Provider.OAuth2 == nil || c.Provider.OAuth2.TokenURL == "" {
		return nil, nil, newFlowError(ErrConfiguration, name, "missing token url", nil)
	}
	if c.Credentials.Key == "" || c.Credentials.Secret == "" {
		return nil, nil, newFlowError(ErrConfiguration, name, "missing consumer key or secret", nil)
	}
	if c.CallbackURL == "" {
		return nil, nil, newFlowError(ErrConfiguration, name, "missing callback url", nil)
	}
	if c.Provider.Decoder == nil || c.Provider.Profile == nil {
		return nil, nil, newFlowError(ErrConfiguration, name, "missing decoder or profile", nil)
	}

	body := encodeOrdered(
		"grant_type", "authorization_code",
		"code", code,
		"client_id", c.Credentials.Key,
		"client_secret", c.Credentials.Secret,
		"redirect_uri", c.CallbackURL,
	)
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	tokenURL := c.Provider.OAuth2.TokenURL
	status, respBody, err := f.Fetcher.Fetch(c.Context, "POST", tokenURL, header, []byte(body))
	if err != nil {
		return nil, nil, newFlowError(ErrTransport, name, "token request failed", err)
	}
	if status < 200 || status > 299 {
		log.NewLogEntry().WithProvider(name).WithEndpoint(tokenURL).WithHTTPStatus(status).WithResponseBody(
			respBody).Info("token request rejected")
		return nil, nil, newFlowError(ErrProviderRejected, name, "token request rejected",
			&providers.StatusError{Endpoint: tokenURL, Code: status})
	}

	info, err := c.Provider.Decoder(respBody)
	if err != nil {
		return nil, nil, newFlowError(ErrMalformedResponse, name, "could not decode token response", err)
	}

	user, err := c.Provider.Profile.FetchProfile(c.Context, info, c.Credentials)
	if err != nil {
		return nil, nil, classify(name, "could not fetch profile", err)
	}
	return user, info, nil
}

// encodeOrdered form-encodes alternating key, value pairs in the given order.
func encodeOrdered(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, url.QueryEscape(pairs[i])+"="+url.QueryEscape(pairs[i+1]))
	}
	return strings.Join(parts, "&")
}
