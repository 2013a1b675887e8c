package auth

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/micro/go-micro/config"
	"github.com/micro/go-micro/config/source/env"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/xerrors"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
)

// DefaultAuthConfig specifies all the defaults used to configure authdispatch
// All configuration can be set using environment variables. Below is a list of
// configuration variables via their envivronment configuration
//
// PROVIDER_*_SLUG
// PROVIDER_*_CLIENT_ID
// PROVIDER_*_CLIENT_SECRET
// PROVIDER_*_SCOPE
//
// REGISTRY_FILE
//
// OAUTH2_CSRF_ENABLE
// OAUTH2_CSRF_TIMEOUT
// OAUTH2_CSRF_PARAM
//
// SESSION_STORE
// SESSION_COOKIE_NAME
// SESSION_COOKIE_SECRET
// SESSION_COOKIE_EXPIRE
// SESSION_COOKIE_DOMAIN
// SESSION_COOKIE_SECURE
// SESSION_COOKIE_HTTPONLY
// SESSION_REDIS_URL
// SESSION_REDIS_PREFIX
// SESSION_REDIS_SENTINEL_ENABLE
// SESSION_REDIS_SENTINEL_MASTER
// SESSION_REDIS_SENTINEL_URLS
//
// SERVER_SCHEME
// SERVER_HOST
// SERVER_PORT
// SERVER_TIMEOUT_WRITE
// SERVER_TIMEOUT_READ
// SERVER_TIMEOUT_SHUTDOWN
// SERVER_TIMEOUT_UPSTREAM
//
// REDIRECT_SUCCESS
// REDIRECT_ERROR
// REDIRECT_UNSUPPORTED
//
// OPENID_LOGIN_URL
// OPENID_HEADER_SECRET
// OPENID_HEADER_IDENTITY
// OPENID_HEADER_PROVIDER
// OPENID_HEADER_NICKNAME
// OPENID_HEADER_EMAIL
//
// METRICS_STATSD_PORT
// METRICS_STATSD_HOST
//
// LOGGING_ENABLE
// LOGGING_LEVEL

func DefaultAuthConfig() Configuration {
	return Configuration{
		ProviderConfigs: map[string]ProviderConfig{},
		OAuth2Config: OAuth2Config{
			CSRFConfig: CSRFConfig{
				Enable:  true,
				Timeout: time.Hour,
				Param:   "state",
			},
		},
		ServerConfig: ServerConfig{
			Port:   4180,
			Scheme: "https",
			TimeoutConfig: TimeoutConfig{
				Write:    30 * time.Second,
				Read:     30 * time.Second,
				Shutdown: 31 * time.Second,
				Upstream: 10 * time.Second,
			},
		},
		SessionConfig: SessionConfig{
			Store: "cookie",
			CookieConfig: CookieConfig{
				Expire:   (7 * 24) * time.Hour,
				Name:     "_authdispatch",
				Secure:   true,
				HTTPOnly: true,
			},
			RedisConfig: RedisConfig{
				Prefix: "authdispatch:session",
			},
		},
		RedirectConfig: RedirectConfig{
			Success:     "/",
			Error:       "/",
			Unsupported: "/",
		},
		OpenIDConfig: OpenIDConfig{
			HeaderConfig: HeaderConfig{
				Identity: "X-Federated-Identity",
				Provider: "X-Federated-Provider",
				Nickname: "X-Forwarded-User",
				Email:    "X-Forwarded-Email",
			},
		},
		LoggingConfig: LoggingConfig{
			Enable: true,
			Level:  "info",
		},
		MetricsConfig: MetricsConfig{
			StatsdConfig: StatsdConfig{
				Port: 8125,
				Host: "localhost",
			},
		},
	}
}

// Validator interface ensures all config structs implement Validate()
type Validator interface {
	Validate() error
}

var (
	_ Validator = Configuration{}
	_ Validator = ProviderConfig{}
	_ Validator = ClientConfig{}
	_ Validator = RegistryConfig{}
	_ Validator = OAuth2Config{}
	_ Validator = CSRFConfig{}
	_ Validator = SessionConfig{}
	_ Validator = CookieConfig{}
	_ Validator = RedisConfig{}
	_ Validator = ServerConfig{}
	_ Validator = TimeoutConfig{}
	_ Validator = RedirectConfig{}
	_ Validator = OpenIDConfig{}
	_ Validator = MetricsConfig{}
	_ Validator = StatsdConfig{}
	_ Validator = LoggingConfig{}
)

// Configuration is the parent struct that holds all the configuration
type Configuration struct {
	ProviderConfigs map[string]ProviderConfig `mapstructure:"provider"`
	RegistryConfig  RegistryConfig            `mapstructure:"registry"`
	OAuth2Config    OAuth2Config              `mapstructure:"oauth2"`
	SessionConfig   SessionConfig             `mapstructure:"session"`
	ServerConfig    ServerConfig              `mapstructure:"server"`
	RedirectConfig  RedirectConfig            `mapstructure:"redirect"`
	OpenIDConfig    OpenIDConfig              `mapstructure:"openid"`
	MetricsConfig   MetricsConfig             `mapstructure:"metrics"`
	LoggingConfig   LoggingConfig             `mapstructure:"logging"`
}

func (c Configuration) Validate() error {
	for key, providerConfig := range c.ProviderConfigs {
		if err := providerConfig.Validate(); err != nil {
			return xerrors.Errorf("invalid provider.%s config: %w", key, err)
		}
	}

	if err := c.RegistryConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid registry config: %w", err)
	}

	if err := c.OAuth2Config.Validate(); err != nil {
		return xerrors.Errorf("invalid oauth2 config: %w", err)
	}

	if err := c.SessionConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid session config: %w", err)
	}

	if err := c.ServerConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid server config: %w", err)
	}

	if err := c.RedirectConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid redirect config: %w", err)
	}

	if err := c.OpenIDConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid openid config: %w", err)
	}

	if err := c.MetricsConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid metrics config: %w", err)
	}

	if err := c.LoggingConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid logging config: %w", err)
	}

	return nil
}

// Credentials returns the consumer credentials keyed by registry name. A
// provider's slug names its registry entry; without one the env key is used.
func (c Configuration) Credentials() CredentialsMap {
	creds := make(CredentialsMap, len(c.ProviderConfigs))
	for key, pc := range c.ProviderConfigs {
		creds[pc.Name(key)] = providers.Credentials{
			Key:    pc.ClientConfig.ID,
			Secret: pc.ClientConfig.Secret,
			Scope:  pc.Scope,
		}
	}
	return creds
}

// ProviderConfig holds the consumer credentials for one registry entry. Env
// keys can't carry underscores, so PROVIDER_LIVE_SLUG=windows_live maps the
// "live" block onto the windows_live entry.
type ProviderConfig struct {
	ProviderSlug string       `mapstructure:"slug"`
	ClientConfig ClientConfig `mapstructure:"client"`
	Scope        string       `mapstructure:"scope"`
}

// Name returns the registry name these credentials apply to.
func (pc ProviderConfig) Name(key string) string {
	if pc.ProviderSlug != "" {
		return pc.ProviderSlug
	}
	return key
}

func (pc ProviderConfig) Validate() error {
	if err := pc.ClientConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid provider.client: %w", err)
	}

	return nil
}

type ClientConfig struct {
	ID     string `mapstructure:"id"`
	Secret string `mapstructure:"secret"`
}

func (cc ClientConfig) Validate() error {
	if cc.ID == "" {
		return xerrors.New("no client.id configured")
	}

	if cc.Secret == "" {
		return xerrors.New("no client.secret configured")
	}

	return nil
}

type RegistryConfig struct {
	File string `mapstructure:"file"`
}

func (rc RegistryConfig) Validate() error {
	// verify the registry file can be opened
	if rc.File != "" {
		r, err := os.Open(rc.File)
		if err != nil {
			return xerrors.Errorf("invalid registry.file filepath: %w", err)
		}
		r.Close()
	}

	return nil
}

type OAuth2Config struct {
	CSRFConfig CSRFConfig `mapstructure:"csrf"`
}

func (oc OAuth2Config) Validate() error {
	if err := oc.CSRFConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid oauth2.csrf config: %w", err)
	}

	return nil
}

type CSRFConfig struct {
	Enable  bool          `mapstructure:"enable"`
	Timeout time.Duration `mapstructure:"timeout"`
	Param   string        `mapstructure:"param"`
}

func (cc CSRFConfig) Validate() error {
	if !cc.Enable {
		return nil
	}

	if cc.Timeout <= 0 {
		return xerrors.Errorf("csrf.timeout must be positive but is: %v", cc.Timeout)
	}

	if cc.Param == "" {
		return xerrors.New("no csrf.param configured")
	}

	return nil
}

type SessionConfig struct {
	Store        string       `mapstructure:"store"`
	CookieConfig CookieConfig `mapstructure:"cookie"`
	RedisConfig  RedisConfig  `mapstructure:"redis"`
}

func (sc SessionConfig) Validate() error {
	switch sc.Store {
	case "cookie":
		if cc := sc.CookieConfig; cc.Secret == "" {
			return xerrors.New("no cookie.secret configured")
		}
	case "redis":
		if err := sc.RedisConfig.Validate(); err != nil {
			return xerrors.Errorf("invalid session.redis config: %w", err)
		}
	case "memory":
		break
	default:
		return xerrors.Errorf("unknown session.store: %q", sc.Store)
	}

	if err := sc.CookieConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid session.cookie config: %w", err)
	}

	return nil
}

func validateCipherKeyValue(val string) error {
	s, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return xerrors.Errorf("expected base64-encoded bytes, as from `openssl rand 32 -base64`: %w", err)
	}

	slen := len(s)
	if slen != 32 && slen != 64 {
		return xerrors.Errorf("expected to decode 32 or 64 base64-encoded bytes, but decoded %d", slen)
	}

	return nil
}

type CookieConfig struct {
	Name     string        `mapstructure:"name"`
	Secret   string        `mapstructure:"secret"`
	Domain   string        `mapstructure:"domain"`
	Expire   time.Duration `mapstructure:"expire"`
	Secure   bool          `mapstructure:"secure"`
	HTTPOnly bool          `mapstructure:"httponly"`
}

func (cc CookieConfig) Validate() error {
	if cc.Name == "" {
		return xerrors.New("no cookie.name configured")
	}

	cookie := &http.Cookie{Name: cc.Name}
	if cookie.String() == "" {
		return xerrors.Errorf("invalid cookie.name: %q", cc.Name)
	}

	if cc.Secret != "" {
		if err := validateCipherKeyValue(cc.Secret); err != nil {
			return xerrors.Errorf("invalid cookie.secret: %w", err)
		}
	}

	if cc.Expire <= 0 {
		return xerrors.Errorf("cookie.expire must be positive but is: %v", cc.Expire)
	}

	return nil
}

// SecretBytes returns the decoded cookie secret.
func (cc CookieConfig) SecretBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(cc.Secret)
}

type RedisConfig struct {
	URL            string         `mapstructure:"url"`
	Prefix         string         `mapstructure:"prefix"`
	SentinelConfig SentinelConfig `mapstructure:"sentinel"`
}

type SentinelConfig struct {
	Enable bool     `mapstructure:"enable"`
	Master string   `mapstructure:"master"`
	URLs   []string `mapstructure:"urls"`
}

func (rc RedisConfig) Validate() error {
	if rc.SentinelConfig.Enable {
		if rc.SentinelConfig.Master == "" {
			return xerrors.New("no redis.sentinel.master configured")
		}
		if len(rc.SentinelConfig.URLs) == 0 {
			return xerrors.New("no redis.sentinel.urls configured")
		}
		return nil
	}

	if rc.URL == "" {
		return xerrors.New("no redis.url configured")
	}

	return nil
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Scheme string `mapstructure:"scheme"`

	TimeoutConfig TimeoutConfig `mapstructure:"timeout"`
}

func (sc ServerConfig) Validate() error {
	if sc.Host == "" {
		return xerrors.New("no server.host configured")
	}

	if sc.Port == 0 {
		return xerrors.New("no server.port configured")
	}

	if sc.Scheme != "http" && sc.Scheme != "https" {
		return xerrors.Errorf("invalid server.scheme: %q", sc.Scheme)
	}

	if err := sc.TimeoutConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid server.timeout config: %w", err)
	}

	return nil
}

// CallbackURL returns the absolute url the provider sends the browser back to.
func (sc ServerConfig) CallbackURL(provider string) string {
	u := url.URL{
		Scheme: sc.Scheme,
		Host:   sc.Host,
		Path:   "/auth/" + provider + "/callback",
	}
	return u.String()
}

type TimeoutConfig struct {
	Write    time.Duration `mapstructure:"write"`
	Read     time.Duration `mapstructure:"read"`
	Shutdown time.Duration `mapstructure:"shutdown"`
	Upstream time.Duration `mapstructure:"upstream"`
}

func (tc TimeoutConfig) Validate() error {
	if tc.Upstream <= 0 {
		return xerrors.Errorf("timeout.upstream must be positive but is: %v", tc.Upstream)
	}

	return nil
}

type RedirectConfig struct {
	Success     string `mapstructure:"success"`
	Error       string `mapstructure:"error"`
	Unsupported string `mapstructure:"unsupported"`
}

func (rc RedirectConfig) Validate() error {
	for name, path := range map[string]string{
		"success":     rc.Success,
		"error":       rc.Error,
		"unsupported": rc.Unsupported,
	} {
		if !strings.HasPrefix(path, "/") {
			return xerrors.Errorf("redirect.%s must be a local path but is: %q", name, path)
		}
	}

	return nil
}

type OpenIDConfig struct {
	LoginConfig  LoginConfig  `mapstructure:"login"`
	HeaderConfig HeaderConfig `mapstructure:"header"`
}

type LoginConfig struct {
	URL string `mapstructure:"url"`
}

type HeaderConfig struct {
	Secret   string `mapstructure:"secret"`
	Identity string `mapstructure:"identity"`
	Provider string `mapstructure:"provider"`
	Nickname string `mapstructure:"nickname"`
	Email    string `mapstructure:"email"`
}

func (oc OpenIDConfig) Validate() error {
	if oc.LoginConfig.URL != "" {
		if _, err := url.Parse(oc.LoginConfig.URL); err != nil {
			return xerrors.Errorf("invalid openid.login.url: %w", err)
		}
		if oc.HeaderConfig.Secret == "" {
			return xerrors.New("no openid.header.secret configured")
		}
	}

	if oc.HeaderConfig.Identity == "" {
		return xerrors.New("no openid.header.identity configured")
	}

	return nil
}

type MetricsConfig struct {
	StatsdConfig StatsdConfig `mapstructure:"statsd"`
}

func (mc MetricsConfig) Validate() error {
	if err := mc.StatsdConfig.Validate(); err != nil {
		return xerrors.Errorf("invalid metrics.statsd config: %w", err)
	}

	return nil
}

type LoggingConfig struct {
	Enable bool   `mapstructure:"enable"`
	Level  string `mapstructure:"level"`
}

func (lc LoggingConfig) Validate() error {
	switch strings.ToLower(lc.Level) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return xerrors.Errorf("invalid logging.level: %q", lc.Level)
}

type StatsdConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

func (sc StatsdConfig) Validate() error {
	if sc.Host == "" {
		return xerrors.New("no statsd.host configured")
	}

	if sc.Port == 0 {
		return xerrors.New("no statsd.port configured")
	}

	return nil
}

// LoadConfig loads all the configuration from env and defaults
func LoadConfig() (Configuration, error) {
	c := DefaultAuthConfig()

	conf := config.NewConfig()
	err := conf.Load(env.NewSource())
	if err != nil {
		return c, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result: &c,
	})
	if err != nil {
		return c, err
	}

	err = decoder.Decode(conf.Map())
	if err != nil {
		return c, err
	}

	return c, nil
}
