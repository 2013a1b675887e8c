package auth

import (
	"errors"
	"testing"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
	"github.com/buzzfeed/authdispatch/internal/pkg/testutil"
)

// stubFlow returns canned results, or panics when asked to.
type stubFlow struct {
	family   providers.Family
	redirect string
	user     providers.UserData
	info     providers.AuthInfo
	err      error
	panics   bool

	lastCall *Call
}

func (s *stubFlow) Family() providers.Family { return s.family }

func (s *stubFlow) Init(c *Call) (string, error) {
	s.lastCall = c
	if s.panics {
		panic("boom")
	}
	return s.redirect, s.err
}

func (s *stubFlow) Callback(c *Call) (providers.UserData, providers.AuthInfo, error) {
	s.lastCall = c
	if s.panics {
		panic("boom")
	}
	return s.user, s.info, s.err
}

// countingCredentials counts lookups against a CredentialsMap.
type countingCredentials struct {
	CredentialsMap
	calls int
}

func (c *countingCredentials) Credentials(provider string) (providers.Credentials, bool) {
	c.calls++
	return c.CredentialsMap.Credentials(provider)
}

func newTestDispatcher(t *testing.T, flows ...Flow) (*Dispatcher, *recordingStatsd) {
	t.Helper()
	registry := providers.NewRegistry(
		providers.ProviderConfig{Name: "stub2", Family: providers.OAuth2, OAuth2: &providers.OAuth2Endpoints{}},
		providers.ProviderConfig{Name: "stub1", Family: providers.OAuth1, OAuth1: &providers.OAuth1Endpoints{}},
		providers.ProviderConfig{Name: "openid", Family: providers.OpenID},
	)
	stats := &recordingStatsd{}
	d, err := NewDispatcher(registry,
		SetFlows(flows...),
		SetCredentials(CredentialsMap{"stub2": {Key: "k", Secret: "s"}}),
		SetCallbackURL(testCallbackURL),
		SetStatsdClient(stats),
	)
	testutil.Ok(t, err)
	return d, stats
}

func TestNewDispatcherErrors(t *testing.T) {
	_, err := NewDispatcher(nil)
	testutil.Assert(t, err != nil, "expected an error for a nil registry")

	_, err = NewDispatcher(providers.NewRegistry(), SetFlows(&stubFlow{family: "saml"}))
	testutil.Assert(t, err != nil, "expected an error for an unknown family")
}

func TestDispatcherUnknownProvider(t *testing.T) {
	testCases := []struct {
		name     string
		dispatch func(*Dispatcher, *Request, string)
	}{
		{name: "initiate", dispatch: (*Dispatcher).Initiate},
		{name: "complete", dispatch: (*Dispatcher).Complete},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			flow := &stubFlow{family: providers.OAuth2, redirect: "https://provider/authorize"}
			d, stats := newTestDispatcher(t, flow)
			req, outcomes := newTestRequest(nil, nil)

			tc.dispatch(d, req, "nonexistent")

			testutil.Equal(t, []string{"nonexistent"}, outcomes.notSupported)
			testutil.Equal(t, 1, outcomes.total())
			testutil.Assert(t, flow.lastCall == nil, "expected the flow not to run")
			testutil.Equal(t, 1, len(stats.counted("dispatch")))
		})
	}
}

func TestDispatcherFamilyWithoutFlow(t *testing.T) {
	d, _ := newTestDispatcher(t, &stubFlow{family: providers.OAuth2})
	req, outcomes := newTestRequest(nil, nil)

	d.Initiate(req, "stub1")

	testutil.Equal(t, []string{"stub1"}, outcomes.notSupported)
	testutil.Equal(t, 1, outcomes.total())
}

func TestDispatcherOutcomes(t *testing.T) {
	user := providers.UserData{"id": "u1"}
	info := providers.AuthInfo{"access_token": "t1"}

	testCases := []struct {
		name                 string
		flow                 *stubFlow
		complete             bool
		expectedRedirects    []string
		expectedNotSupported []string
		expectedAuthErrors   []authError
		expectedSignIns      int
		expectedErrorKind    string
	}{
		{
			name:              "initiate success redirects",
			flow:              &stubFlow{family: providers.OAuth2, redirect: "https://provider/authorize?x=1"},
			expectedRedirects: []string{"https://provider/authorize?x=1"},
		},
		{
			name:            "complete success signs in",
			flow:            &stubFlow{family: providers.OAuth2, user: user, info: info},
			complete:        true,
			expectedSignIns: 1,
		},
		{
			name: "configuration gap is provider not supported",
			flow: &stubFlow{
				family: providers.OAuth2,
				err:    newFlowError(ErrConfiguration, "stub2", "missing callback url", nil),
			},
			expectedNotSupported: []string{"stub2"},
			expectedErrorKind:    "error:configuration",
		},
		{
			name: "provider rejection is an auth error with the flow message",
			flow: &stubFlow{
				family: providers.OAuth2,
				err:    newFlowError(ErrProviderRejected, "stub2", "no code", errors.New("detail")),
			},
			complete:           true,
			expectedAuthErrors: []authError{{provider: "stub2", message: "no code"}},
			expectedErrorKind:  "error:provider_rejected",
		},
		{
			name: "forgery is an auth error",
			flow: &stubFlow{
				family: providers.OAuth2,
				err:    newFlowError(ErrForgery, "stub2", "invalid csrf token", nil),
			},
			complete:           true,
			expectedAuthErrors: []authError{{provider: "stub2", message: "invalid csrf token"}},
			expectedErrorKind:  "error:forgery",
		},
		{
			name:               "plain errors are internal auth errors",
			flow:               &stubFlow{family: providers.OAuth2, err: errors.New("unexpected")},
			expectedAuthErrors: []authError{{provider: "stub2", message: "authentication failed"}},
			expectedErrorKind:  "error:internal",
		},
		{
			name:               "a panicking flow is an internal auth error",
			flow:               &stubFlow{family: providers.OAuth2, panics: true},
			complete:           true,
			expectedAuthErrors: []authError{{provider: "stub2", message: "authentication failed"}},
			expectedErrorKind:  "error:internal",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, stats := newTestDispatcher(t, tc.flow)
			req, outcomes := newTestRequest(nil, nil)

			if tc.complete {
				d.Complete(req, "stub2")
			} else {
				d.Initiate(req, "stub2")
			}

			testutil.Equal(t, 1, outcomes.total())
			testutil.Equal(t, tc.expectedRedirects, outcomes.redirects)
			testutil.Equal(t, tc.expectedNotSupported, outcomes.notSupported)
			testutil.Equal(t, tc.expectedAuthErrors, outcomes.authErrors)
			testutil.Equal(t, tc.expectedSignIns, len(outcomes.signIns))
			if tc.expectedSignIns > 0 {
				testutil.Equal(t, signIn{user: user, info: info, provider: "stub2"}, outcomes.signIns[0])
			}

			counted := stats.counted("dispatch")
			testutil.Equal(t, 1, len(counted))
			if tc.expectedErrorKind != "" {
				tags := counted[0].tags
				testutil.Equal(t, tc.expectedErrorKind, tags[len(tags)-1])
			}
		})
	}
}

func TestDispatcherResolvesCallAndCredentials(t *testing.T) {
	flow := &stubFlow{family: providers.OAuth2, redirect: "https://provider"}
	d, _ := newTestDispatcher(t, flow)
	req, _ := newTestRequest(nil, nil)

	d.Initiate(req, "stub2")

	testutil.Assert(t, flow.lastCall != nil, "expected the flow to run")
	testutil.Equal(t, "stub2", flow.lastCall.Provider.Name)
	testutil.Equal(t, providers.Credentials{Key: "k", Secret: "s"}, flow.lastCall.Credentials)
	testutil.Equal(t, "https://host/cb", flow.lastCall.CallbackURL)
	testutil.Assert(t, flow.lastCall.Request == req, "expected the call to carry the request")
}

func TestDispatcherSkipsCredentialsForOpenID(t *testing.T) {
	flow := &stubFlow{family: providers.OpenID, redirect: "https://login"}
	creds := &countingCredentials{CredentialsMap: CredentialsMap{"openid": {Key: "k", Secret: "s"}}}
	d, _ := newTestDispatcher(t, flow)
	d.Credentials = creds
	req, outcomes := newTestRequest(nil, nil)

	d.Initiate(req, "openid")

	testutil.Equal(t, []string{"https://login"}, outcomes.redirects)
	testutil.Equal(t, 0, creds.calls)
	testutil.Equal(t, providers.Credentials{}, flow.lastCall.Credentials)
}
