package providers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/imdario/mergo"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/buzzfeed/authdispatch/internal/pkg/transport"
)

// Registry maps provider names to their configuration. It is built once and
// never changes afterwards; Lookup hands out copies.
type Registry struct {
	providers map[string]ProviderConfig
}

// NewRegistry returns a Registry holding configs keyed by their Name.
func NewRegistry(configs ...ProviderConfig) *Registry {
	r := &Registry{providers: make(map[string]ProviderConfig, len(configs))}
	for _, c := range configs {
		r.providers[c.Name] = copyConfig(c)
	}
	return r
}

// Lookup returns the configuration registered under name. A missing provider
// is reported through ok, never through a panic or error.
func (r *Registry) Lookup(name string) (ProviderConfig, bool) {
	c, ok := r.providers[name]
	if !ok {
		return ProviderConfig{}, false
	}
	return copyConfig(c), true
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyConfig(c ProviderConfig) ProviderConfig {
	if c.OAuth2 != nil {
		e := *c.OAuth2
		c.OAuth2 = &e
	}
	if c.OAuth1 != nil {
		e := *c.OAuth1
		c.OAuth1 = &e
	}
	return c
}

// Entry is the declarative form of a registry entry, as written in the
// registry override file.
type Entry struct {
	Family          Family `yaml:"family"`
	Decoder         string `yaml:"decoder"`
	Profile         string `yaml:"profile"`
	ProfileURL      string `yaml:"profile_url"`
	AuthorizeURL    string `yaml:"authorize_url"`
	TokenURL        string `yaml:"token_url"`
	RequestTokenURL string `yaml:"request_token_url"`
	AccessTokenURL  string `yaml:"access_token_url"`
}

// DefaultEntries returns the built-in provider table.
func DefaultEntries() map[string]Entry {
	return map[string]Entry{
		"google": {
			Family:       OAuth2,
			Decoder:      "json",
			Profile:      "google",
			AuthorizeURL: "https://accounts.google.com/o/oauth2/auth?{0}",
			TokenURL:     "https://accounts.google.com/o/oauth2/token",
		},
		"windows_live": {
			Family:       OAuth2,
			Decoder:      "json",
			Profile:      "windows_live",
			AuthorizeURL: "https://oauth.live.com/authorize?{0}",
			TokenURL:     "https://oauth.live.com/token",
		},
		"facebook": {
			Family:       OAuth2,
			Decoder:      "query_string",
			Profile:      "facebook",
			AuthorizeURL: "https://www.facebook.com/dialog/oauth?{0}",
			TokenURL:     "https://graph.facebook.com/oauth/access_token",
		},
		"linkedin": {
			Family:          OAuth1,
			Decoder:         "query_string",
			Profile:         "linkedin",
			RequestTokenURL: "https://api.linkedin.com/uas/oauth/requestToken",
			AuthorizeURL:    "https://www.linkedin.com/uas/oauth/authenticate?{0}",
			AccessTokenURL:  "https://api.linkedin.com/uas/oauth/accessToken",
		},
		"twitter": {
			Family:          OAuth1,
			Decoder:         "query_string",
			Profile:         "twitter",
			RequestTokenURL: "https://api.twitter.com/oauth/request_token",
			AuthorizeURL:    "https://api.twitter.com/oauth/authenticate?{0}",
			AccessTokenURL:  "https://api.twitter.com/oauth/access_token",
		},
		"openid": {
			Family: OpenID,
		},
	}
}

type entriesFile struct {
	Providers map[string]Entry `yaml:"providers"`
}

// LoadEntries reads registry entries from a YAML document of the form
//
//	providers:
//	  github:
//	    family: oauth2
//	    decoder: json
//	    profile: json
//	    profile_url: https://api.github.com/user
//	    authorize_url: https://github.com/login/oauth/authorize
//	    token_url: https://github.com/login/oauth/access_token
func LoadEntries(r io.Reader) (map[string]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var f entriesFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, xerrors.Errorf("invalid provider registry file: %w", err)
	}
	return f.Providers, nil
}

// MergeEntries lays overrides over base field by field. Empty override fields
// keep the base value; unknown names are added.
func MergeEntries(base, overrides map[string]Entry) (map[string]Entry, error) {
	out := make(map[string]Entry, len(base)+len(overrides))
	for name, e := range base {
		out[name] = e
	}
	for name, o := range overrides {
		e := out[name]
		if err := mergo.Merge(&e, o, mergo.WithOverride); err != nil {
			return nil, xerrors.Errorf("could not merge provider %q: %w", name, err)
		}
		out[name] = e
	}
	return out, nil
}

// Deps are the outbound clients shared by the profile fetchers.
type Deps struct {
	Fetcher transport.Fetcher
	Client  *http.Client
}

type profileBuilder func(endpoint string, deps Deps) ProfileFetcher

var profileBuilders = map[string]profileBuilder{
	"google": func(endpoint string, deps Deps) ProfileFetcher {
		return &GoogleProfile{Endpoint: endpoint, Client: deps.Client}
	},
	"facebook": func(endpoint string, deps Deps) ProfileFetcher {
		return &JSONProfile{URL: endpoint, Fetcher: deps.Fetcher}
	},
	"windows_live": func(endpoint string, deps Deps) ProfileFetcher {
		return &JSONProfile{URL: endpoint, Fetcher: deps.Fetcher, Normalize: addLiveAvatar}
	},
	"linkedin": func(endpoint string, deps Deps) ProfileFetcher {
		return &LinkedInProfile{URL: endpoint, Fetcher: deps.Fetcher}
	},
	"twitter": func(endpoint string, deps Deps) ProfileFetcher {
		return &TwitterProfile{URL: endpoint, Fetcher: deps.Fetcher}
	},
	"json": func(endpoint string, deps Deps) ProfileFetcher {
		return &JSONProfile{URL: endpoint, Fetcher: deps.Fetcher}
	},
}

var defaultProfileURLs = map[string]string{
	"facebook":     facebookProfileURL,
	"windows_live": windowsLiveProfileURL,
	"linkedin":     linkedInProfileURL,
	"twitter":      twitterProfileURL,
}

// BuildRegistry turns entries into a Registry, resolving decoder and profile names.
func BuildRegistry(entries map[string]Entry, deps Deps) (*Registry, error) {
	configs := make([]ProviderConfig, 0, len(entries))
	for name, e := range entries {
		c, err := e.build(name, deps)
		if err != nil {
			return nil, xerrors.Errorf("invalid provider %q: %w", name, err)
		}
		configs = append(configs, c)
	}
	return NewRegistry(configs...), nil
}

func (e Entry) build(name string, deps Deps) (ProviderConfig, error) {
	c := ProviderConfig{Name: name, Family: e.Family}

	switch e.Family {
	case OAuth2:
		if e.RequestTokenURL != "" || e.AccessTokenURL != "" {
			return c, errors.New("oauth2 providers take no request or access token url")
		}
		c.OAuth2 = &OAuth2Endpoints{AuthorizeURL: e.AuthorizeURL, TokenURL: e.TokenURL}
	case OAuth1:
		if e.TokenURL != "" {
			return c, errors.New("oauth1 providers take no token url")
		}
		c.OAuth1 = &OAuth1Endpoints{
			RequestTokenURL: e.RequestTokenURL,
			AuthorizeURL:    e.AuthorizeURL,
			AccessTokenURL:  e.AccessTokenURL,
		}
	case OpenID:
		if e.AuthorizeURL != "" || e.TokenURL != "" || e.RequestTokenURL != "" || e.AccessTokenURL != "" {
			return c, errors.New("openid providers take no endpoints")
		}
		return c, nil
	default:
		return c, fmt.Errorf("unknown family %q", e.Family)
	}

	if e.Decoder != "" {
		d, ok := DecoderByName(e.Decoder)
		if !ok {
			return c, fmt.Errorf("unknown decoder %q", e.Decoder)
		}
		c.Decoder = d
	}

	if e.Profile != "" {
		build, ok := profileBuilders[e.Profile]
		if !ok {
			return c, fmt.Errorf("unknown profile %q", e.Profile)
		}
		endpoint := e.ProfileURL
		if endpoint == "" {
			endpoint = defaultProfileURLs[e.Profile]
		}
		if endpoint == "" && e.Profile == "json" {
			return c, errors.New("json profile needs a profile_url")
		}
		c.Profile = build(endpoint, deps)
	}

	return c, nil
}

// ExpandAuthorizeURL fills an authorize URL template with params. Templates
// carrying {0} have it replaced by the encoded query; others get it appended.
func ExpandAuthorizeURL(template string, params url.Values) (string, error) {
	if strings.Contains(template, "{0}") {
		return strings.Replace(template, "{0}", params.Encode(), 1), nil
	}
	return withQuery(template, params)
}
