package auth

import (
	"net/http"

	"github.com/DataDog/datadog-go/statsd"

	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
)

// AuthenticatorMux serves the health check and the auth routes.
type AuthenticatorMux struct {
	handler       http.Handler
	authenticator *Authenticator
}

// NewAuthenticatorMux builds the session store, dispatcher and authenticator
// described by config.
func NewAuthenticatorMux(config Configuration, statsdClient statsd.ClientInterface) (*AuthenticatorMux, error) {
	logger := log.NewLogEntry()

	sessionStore, err := newSessionStore(config.SessionConfig)
	if err != nil {
		logger.Error(err, "error creating session store")
		return nil, err
	}

	identity, err := newIdentity(config.OpenIDConfig)
	if err != nil {
		logger.Error(err, "error creating openid identity service")
		return nil, err
	}

	dispatcher, err := newDispatcher(config, identity, statsdClient)
	if err != nil {
		logger.Error(err, "error creating dispatcher")
		return nil, err
	}

	authenticator, err := NewAuthenticator(config,
		AssignDispatcher(dispatcher),
		AssignSessionStore(sessionStore),
		AssignStatsdClient(statsdClient),
	)
	if err != nil {
		logger.Error(err, "error creating new Authenticator")
		return nil, err
	}

	// identity headers are only read when a login service sits in front of us
	handler := authenticator.ServeMux
	if config.OpenIDConfig.LoginConfig.URL != "" {
		handler = identity.Middleware(handler)
	}

	return &AuthenticatorMux{
		handler:       setHealthCheck("/ping", handler),
		authenticator: authenticator,
	}, nil
}

func (a *AuthenticatorMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func setHealthCheck(healthcheckPath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthcheckPath {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
