package auth

import (
	"errors"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
	"github.com/buzzfeed/authdispatch/internal/pkg/federated"
)

// OpenIDFlow hands identity assertion to a federated login service.
type OpenIDFlow struct {
	Identity federated.Identity
}

var _ Flow = &OpenIDFlow{}

// NewOpenIDFlow returns an OpenIDFlow backed by identity.
func NewOpenIDFlow(identity federated.Identity) (*OpenIDFlow, error) {
	if identity == nil {
		return nil, errors.New("an identity service is required")
	}
	return &OpenIDFlow{Identity: identity}, nil
}

// Family fulfills the Flow interface.
func (f *OpenIDFlow) Family() providers.Family {
	return providers.OpenID
}

// Init returns the login service url for the requested identity.
func (f *OpenIDFlow) Init(c *Call) (string, error) {
	name := c.Provider.Name
	identity := c.IdentityURL
	if identity == "" {
		identity = c.Params.Get("identity_url")
	}
	if identity == "" {
		return "", newFlowError(ErrConfiguration, name, "missing identity url", nil)
	}
	if c.CallbackURL == "" {
		return "", newFlowError(ErrConfiguration, name, "missing callback url", nil)
	}

	loginURL, err := f.Identity.CreateLoginURL(c.CallbackURL, identity)
	if errors.Is(err, federated.ErrNoLoginURL) {
		return "", newFlowError(ErrConfiguration, name, "no login service", err)
	}
	if err != nil {
		return "", newFlowError(ErrInternal, name, "could not build login url", err)
	}
	return loginURL, nil
}

// Callback reads the identity the login service asserted for this request.
func (f *OpenIDFlow) Callback(c *Call) (providers.UserData, providers.AuthInfo, error) {
	name := c.Provider.Name
	u, err := f.Identity.CurrentUser(c.Context)
	if errors.Is(err, federated.ErrNoLoginURL) {
		return nil, nil, newFlowError(ErrConfiguration, name, "no login service", err)
	}
	if err != nil {
		return nil, nil, newFlowError(ErrTransport, name, "OpenID authentication failed", err)
	}
	if u == nil || u.FederatedIdentity == "" {
		return nil, nil, newFlowError(ErrProviderRejected, name, "OpenID authentication failed", nil)
	}

	user := providers.UserData{
		"id":       u.FederatedIdentity,
		"nickname": u.Nickname,
		"email":    u.Email,
	}
	info := providers.AuthInfo{
		"provider": u.FederatedProvider,
	}
	return user, info, nil
}
