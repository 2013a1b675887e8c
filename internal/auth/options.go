package auth

import (
	"os"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
	"github.com/buzzfeed/authdispatch/internal/pkg/csrf"
	"github.com/buzzfeed/authdispatch/internal/pkg/federated"
	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
	"github.com/buzzfeed/authdispatch/internal/pkg/sessions"
	"github.com/buzzfeed/authdispatch/internal/pkg/transport"
)

// AssignDispatcher sets the dispatcher the authenticator hands requests to.
func AssignDispatcher(d *Dispatcher) func(*Authenticator) error {
	return func(p *Authenticator) error {
		p.Dispatcher = d
		return nil
	}
}

// AssignSessionStore sets the store sessions are loaded from and saved to.
func AssignSessionStore(s sessions.Store) func(*Authenticator) error {
	return func(p *Authenticator) error {
		p.SessionStore = s
		return nil
	}
}

// AssignStatsdClient sets the authenticator's statsd client.
func AssignStatsdClient(s statsd.ClientInterface) func(*Authenticator) error {
	return func(p *Authenticator) error {
		p.StatsdClient = s
		return nil
	}
}

// newRegistry builds the provider registry from the built-in entries with the
// registry file, if any, laid over them.
func newRegistry(rc RegistryConfig, deps providers.Deps) (*providers.Registry, error) {
	entries := providers.DefaultEntries()
	if rc.File != "" {
		f, err := os.Open(rc.File)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		overrides, err := providers.LoadEntries(f)
		if err != nil {
			return nil, err
		}
		entries, err = providers.MergeEntries(entries, overrides)
		if err != nil {
			return nil, err
		}
	}
	return providers.BuildRegistry(entries, deps)
}

// newSessionStore returns the session store selected by session.store.
func newSessionStore(sc SessionConfig) (sessions.Store, error) {
	cc := sc.CookieConfig
	log.NewLogEntry().WithSessionStore(sc.Store).WithCookieName(cc.Name).Info("creating session store")

	switch sc.Store {
	case "redis":
		rc := sc.RedisConfig
		return sessions.NewRedisStore(cc.Name, func(r *sessions.RedisStore) error {
			r.CookieExpire = cc.Expire
			r.CookieDomain = cc.Domain
			r.CookieSecure = cc.Secure
			r.CookieHTTPOnly = cc.HTTPOnly
			r.ConnectionURL = rc.URL
			r.UseSentinel = rc.SentinelConfig.Enable
			r.SentinelMasterName = rc.SentinelConfig.Master
			r.SentinelConnectionURLs = rc.SentinelConfig.URLs
			if rc.Prefix != "" {
				r.KeyPrefix = rc.Prefix
			}
			return nil
		})
	case "memory":
		return sessions.NewMemoryStore(cc.Name, func(m *sessions.MemoryStore) error {
			m.CookieExpire = cc.Expire
			m.CookieDomain = cc.Domain
			m.CookieSecure = cc.Secure
			m.CookieHTTPOnly = cc.HTTPOnly
			return nil
		})
	}

	secret, err := cc.SecretBytes()
	if err != nil {
		return nil, err
	}
	return sessions.NewCookieStore(cc.Name,
		sessions.CreateMiscreantCookieCipher(secret),
		func(s *sessions.CookieStore) error {
			s.CookieExpire = cc.Expire
			s.CookieDomain = cc.Domain
			s.CookieSecure = cc.Secure
			s.CookieHTTPOnly = cc.HTTPOnly
			return nil
		},
	)
}

// newIdentity returns the header trusting identity service the OpenID flow uses.
func newIdentity(oc OpenIDConfig) (*federated.HeaderIdentity, error) {
	hc := oc.HeaderConfig
	return federated.NewHeaderIdentity(oc.LoginConfig.URL, federated.SetSecret(hc.Secret), func(h *federated.HeaderIdentity) error {
		if hc.Identity != "" {
			h.IdentityHeader = hc.Identity
		}
		if hc.Provider != "" {
			h.ProviderHeader = hc.Provider
		}
		if hc.Nickname != "" {
			h.NicknameHeader = hc.Nickname
		}
		if hc.Email != "" {
			h.EmailHeader = hc.Email
		}
		return nil
	})
}

// newFlows returns one flow per family, all sharing fetcher.
func newFlows(c Configuration, fetcher transport.Fetcher, identity federated.Identity) ([]Flow, error) {
	oauth2Opts := []func(*OAuth2Flow) error{}
	if cc := c.OAuth2Config.CSRFConfig; cc.Enable {
		codec, err := csrf.NewCodec(csrf.SetTimeout(cc.Timeout))
		if err != nil {
			return nil, err
		}
		oauth2Opts = append(oauth2Opts, SetCSRFCodec(codec), SetStateParam(cc.Param))
	}

	oauth2Flow, err := NewOAuth2Flow(fetcher, oauth2Opts...)
	if err != nil {
		return nil, err
	}
	oauth1Flow, err := NewOAuth1Flow(fetcher)
	if err != nil {
		return nil, err
	}
	openIDFlow, err := NewOpenIDFlow(identity)
	if err != nil {
		return nil, err
	}
	return []Flow{oauth2Flow, oauth1Flow, openIDFlow}, nil
}

// newDeps returns the outbound clients shared by flows and profile fetchers.
func newDeps(tc TimeoutConfig) providers.Deps {
	client := transport.NewHTTPClient(tc.Upstream)
	return providers.Deps{
		Fetcher: &transport.HTTPFetcher{Client: client},
		Client:  client,
	}
}

// newDispatcher wires the registry, flows and credentials described by config.
func newDispatcher(config Configuration, identity federated.Identity, statsdClient statsd.ClientInterface) (*Dispatcher, error) {
	deps := newDeps(config.ServerConfig.TimeoutConfig)

	registry, err := newRegistry(config.RegistryConfig, deps)
	if err != nil {
		return nil, err
	}

	flows, err := newFlows(config, deps.Fetcher, identity)
	if err != nil {
		return nil, err
	}

	return NewDispatcher(registry,
		SetFlows(flows...),
		SetCredentials(config.Credentials()),
		SetCallbackURL(config.ServerConfig.CallbackURL),
		SetStatsdClient(statsdClient),
	)
}
