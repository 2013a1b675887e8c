package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/gorilla/mux"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
	"github.com/buzzfeed/authdispatch/internal/pkg/sessions"
)

// Session keys the signed in identity is stored under.
const (
	SessionProviderKey = "provider"
	SessionUserKey     = "user"
	SessionAuthInfoKey = "auth_info"
)

// Authenticator is the HTTP host for the Dispatcher. It owns the session and
// turns every dispatch outcome into a redirect.
type Authenticator struct {
	Dispatcher   *Dispatcher
	SessionStore sessions.Store
	StatsdClient statsd.ClientInterface

	SuccessPath     string
	ErrorPath       string
	UnsupportedPath string

	ServeMux http.Handler
}

// NewAuthenticator creates a Authenticator struct and applies the optional functions slice to the struct.
func NewAuthenticator(config Configuration, optionFuncs ...func(*Authenticator) error) (*Authenticator, error) {
	logger := log.NewLogEntry()

	p := &Authenticator{
		StatsdClient:    &statsd.NoOpClient{},
		SuccessPath:     config.RedirectConfig.Success,
		ErrorPath:       config.RedirectConfig.Error,
		UnsupportedPath: config.RedirectConfig.Unsupported,
	}

	// apply the option functions
	for _, optFunc := range optionFuncs {
		err := optFunc(p)
		if err != nil {
			logger.Error(err)
			return nil, err
		}
	}

	if p.Dispatcher == nil {
		return nil, fmt.Errorf("authenticator has no dispatcher")
	}
	if p.SessionStore == nil {
		return nil, fmt.Errorf("authenticator has no session store")
	}

	p.ServeMux = p.newMux()
	return p, nil
}

func (p *Authenticator) newMux() http.Handler {
	serviceMux := mux.NewRouter()
	serviceMux.HandleFunc("/auth/{provider}", p.withMethods(p.Initiate, "GET", "POST"))
	serviceMux.HandleFunc("/auth/{provider}/callback", p.withMethods(p.Callback, "GET", "POST"))

	return setHeaders(serviceMux)
}

// hostOutcomes records the single outcome of one dispatch so the handler can
// save the session before writing the response.
type hostOutcomes struct {
	redirect string
	provider string

	notSupported bool
	errMessage   string
	user         providers.UserData
	info         providers.AuthInfo
	signedIn     bool
}

func (o *hostOutcomes) ProviderNotSupported(provider string) {
	o.provider = provider
	o.notSupported = true
}

func (o *hostOutcomes) AuthError(provider, message string) {
	o.provider = provider
	o.errMessage = message
}

func (o *hostOutcomes) SignIn(user providers.UserData, info providers.AuthInfo, provider string) {
	o.provider = provider
	o.user = user
	o.info = info
	o.signedIn = true
}

// Initiate starts a sign in with the provider named in the path.
func (p *Authenticator) Initiate(rw http.ResponseWriter, req *http.Request) {
	p.dispatch(rw, req, p.Dispatcher.Initiate)
}

// Callback completes a sign in with the provider named in the path.
func (p *Authenticator) Callback(rw http.ResponseWriter, req *http.Request) {
	p.dispatch(rw, req, p.Dispatcher.Complete)
}

func (p *Authenticator) dispatch(rw http.ResponseWriter, req *http.Request, step func(*Request, string)) {
	logger := log.NewLogEntry()
	provider := mux.Vars(req)["provider"]
	tags := []string{fmt.Sprintf("action:%s", GetActionTag(req))}

	err := req.ParseForm()
	if err != nil {
		tags = append(tags, "error:invalid_form")
		p.StatsdClient.Incr("application_error", tags, 1.0)
		ErrorResponse(rw, req, err.Error(), http.StatusBadRequest)
		return
	}

	session := p.loadSession(req)
	outcomes := &hostOutcomes{}
	step(&Request{
		Context:  req.Context(),
		Params:   req.Form,
		Session:  session,
		Redirect: func(u string) { outcomes.redirect = u },
		Outcomes: outcomes,
	}, provider)

	target, err := p.resolve(session, outcomes)
	if err != nil {
		logger.WithProvider(provider).Error(err, "error storing signed in identity")
		tags = append(tags, "error:session_encode")
		p.StatsdClient.Incr("application_error", tags, 1.0)
		ErrorResponse(rw, req, "Internal Error", http.StatusInternalServerError)
		return
	}

	if session.Modified() {
		err = p.SessionStore.Save(rw, req, session)
		if err != nil {
			logger.WithProvider(provider).Error(err, "error saving session")
			tags = append(tags, "error:save_session")
			p.StatsdClient.Incr("application_error", tags, 1.0)
			ErrorResponse(rw, req, "Internal Error", http.StatusInternalServerError)
			return
		}
	}

	http.Redirect(rw, req, target, http.StatusFound)
}

// loadSession returns the request's session, starting a fresh one when the
// stored session is gone or can't be read.
func (p *Authenticator) loadSession(req *http.Request) *sessions.Session {
	session, err := p.SessionStore.Load(req)
	if err != nil {
		if err != sessions.ErrSessionNotFound {
			log.NewLogEntry().WithRemoteAddress(getRemoteAddr(req)).Error(err, "error loading session")
		}
		return sessions.NewSession()
	}
	return session
}

// resolve picks the redirect target for the outcome, storing the identity on sign in.
func (p *Authenticator) resolve(session *sessions.Session, o *hostOutcomes) (string, error) {
	switch {
	case o.redirect != "":
		return o.redirect, nil
	case o.notSupported:
		return withParams(p.UnsupportedPath, url.Values{"provider": {o.provider}}), nil
	case o.signedIn:
		user, err := json.Marshal(o.user)
		if err != nil {
			return "", err
		}
		info, err := json.Marshal(o.info)
		if err != nil {
			return "", err
		}
		session.Set(SessionProviderKey, o.provider)
		session.Set(SessionUserKey, string(user))
		session.Set(SessionAuthInfoKey, string(info))
		return p.SuccessPath, nil
	}
	return withParams(p.ErrorPath, url.Values{"provider": {o.provider}, "error": {o.errMessage}}), nil
}

func withParams(path string, params url.Values) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
