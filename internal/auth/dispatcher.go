package auth

import (
	"errors"
	"fmt"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
)

const (
	outcomeRedirect     = "redirect"
	outcomeSignIn       = "sign_in"
	outcomeNotSupported = "provider_not_supported"
	outcomeAuthError    = "auth_error"
)

// Dispatcher routes initiate and callback requests to the flow registered for a
// provider's family and turns the flow result into exactly one outcome.
type Dispatcher struct {
	Registry     *providers.Registry
	Flows        map[providers.Family]Flow
	Credentials  CredentialsProvider
	CallbackURL  CallbackURLFunc
	StatsdClient statsd.ClientInterface
}

// NewDispatcher returns a Dispatcher for the registry with the option funcs applied.
func NewDispatcher(registry *providers.Registry, optFuncs ...func(*Dispatcher) error) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("a provider registry is required")
	}

	d := &Dispatcher{
		Registry:     registry,
		Flows:        map[providers.Family]Flow{},
		Credentials:  CredentialsMap{},
		CallbackURL:  func(string) string { return "" },
		StatsdClient: &statsd.NoOpClient{},
	}

	for _, f := range optFuncs {
		err := f(d)
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

// SetFlows registers flows by the family they handle.
func SetFlows(flows ...Flow) func(*Dispatcher) error {
	return func(d *Dispatcher) error {
		for _, f := range flows {
			if !f.Family().Valid() {
				return fmt.Errorf("flow for unknown family %q", f.Family())
			}
			d.Flows[f.Family()] = f
		}
		return nil
	}
}

// SetCredentials sets the consumer credentials source.
func SetCredentials(c CredentialsProvider) func(*Dispatcher) error {
	return func(d *Dispatcher) error {
		d.Credentials = c
		return nil
	}
}

// SetCallbackURL sets the function that builds each provider's callback url.
func SetCallbackURL(f CallbackURLFunc) func(*Dispatcher) error {
	return func(d *Dispatcher) error {
		d.CallbackURL = f
		return nil
	}
}

// SetStatsdClient sets the dispatcher's statsd client.
func SetStatsdClient(s statsd.ClientInterface) func(*Dispatcher) error {
	return func(d *Dispatcher) error {
		d.StatsdClient = s
		return nil
	}
}

// Initiate starts a sign in with provider. It ends in a redirect to the
// provider, ProviderNotSupported or AuthError.
func (d *Dispatcher) Initiate(req *Request, provider string) {
	call, flow, ok := d.resolve(req, provider)
	if !ok {
		d.notSupported(req, "initiate", provider, "")
		return
	}

	var redirectURL string
	err := d.guard(provider, func() error {
		var err error
		redirectURL, err = flow.Init(call)
		return err
	})
	if err != nil {
		d.fail(req, "initiate", provider, flow.Family(), err)
		return
	}

	log.NewLogEntry().WithProvider(provider).WithAuthFamily(string(flow.Family())).WithRedirectURL(
		redirectURL).Debug("redirecting to provider")
	d.StatsdClient.Incr("dispatch", outcomeTags("initiate", provider, outcomeRedirect, ""), 1.0)
	req.Redirect(redirectURL)
}

// Complete handles the provider's callback. It ends in SignIn,
// ProviderNotSupported or AuthError.
func (d *Dispatcher) Complete(req *Request, provider string) {
	call, flow, ok := d.resolve(req, provider)
	if !ok {
		d.notSupported(req, "callback", provider, "")
		return
	}

	var (
		user providers.UserData
		info providers.AuthInfo
	)
	err := d.guard(provider, func() error {
		var err error
		user, info, err = flow.Callback(call)
		return err
	})
	if err != nil {
		d.fail(req, "callback", provider, flow.Family(), err)
		return
	}

	d.StatsdClient.Incr("dispatch", outcomeTags("callback", provider, outcomeSignIn, ""), 1.0)
	req.Outcomes.SignIn(user, info, provider)
}

// resolve looks up the provider and its flow. Credentials are only required
// by the oauth families, and a missing pair is left for the flow to report.
func (d *Dispatcher) resolve(req *Request, provider string) (*Call, Flow, bool) {
	cfg, ok := d.Registry.Lookup(provider)
	if !ok {
		return nil, nil, false
	}
	flow, ok := d.Flows[cfg.Family]
	if !ok {
		return nil, nil, false
	}

	call := &Call{
		Request:     req,
		Provider:    cfg,
		CallbackURL: d.CallbackURL(provider),
	}
	if cfg.Family != providers.OpenID {
		call.Credentials, _ = d.Credentials.Credentials(provider)
	}
	return call, flow, true
}

// guard runs fn, turning a panic into an internal FlowError.
func (d *Dispatcher) guard(provider string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newFlowError(ErrInternal, provider, "authentication failed", fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}

func (d *Dispatcher) notSupported(req *Request, action, provider string, kind ErrorKind) {
	d.StatsdClient.Incr("dispatch", outcomeTags(action, provider, outcomeNotSupported, kind), 1.0)
	req.Outcomes.ProviderNotSupported(provider)
}

func (d *Dispatcher) fail(req *Request, action, provider string, family providers.Family, err error) {
	kind := kindOf(err)
	logger := log.NewLogEntry().WithProvider(provider).WithAuthFamily(string(family)).WithAction(
		action).WithErrorKind(string(kind))

	if kind == ErrConfiguration {
		logger.Error(err, "provider is not configured")
		d.notSupported(req, action, provider, kind)
		return
	}

	logger.Error(err, "authentication failed")
	tags := outcomeTags(action, provider, outcomeAuthError, kind)
	d.StatsdClient.Incr("dispatch", tags, 1.0)
	d.StatsdClient.Incr("provider_error", tags, 1.0)
	req.Outcomes.AuthError(provider, errorMessage(err))
}

// errorMessage is the message passed to AuthError. It never carries the
// wrapped cause, which may hold provider response detail.
func errorMessage(err error) string {
	var ferr *FlowError
	if errors.As(err, &ferr) && ferr.Message != "" {
		return ferr.Message
	}
	return "authentication failed"
}
