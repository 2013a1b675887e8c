package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
	"github.com/buzzfeed/authdispatch/internal/pkg/sessions"
)

type fakeResponse struct {
	status int
	body   string
	err    error
}

type fetchedRequest struct {
	method string
	url    string
	header http.Header
	body   string
}

// fakeFetcher answers by url, ignoring the query string, and records every call.
type fakeFetcher struct {
	responses map[string]fakeResponse
	requests  []fetchedRequest
}

func (f *fakeFetcher) Fetch(ctx context.Context, method, rawURL string, header http.Header, body []byte) (int, []byte, error) {
	f.requests = append(f.requests, fetchedRequest{method: method, url: rawURL, header: header, body: string(body)})
	key := rawURL
	if i := strings.Index(key, "?"); i >= 0 {
		key = key[:i]
	}
	resp, ok := f.responses[key]
	if !ok {
		return http.StatusNotFound, []byte("not found"), nil
	}
	if resp.err != nil {
		return 0, nil, resp.err
	}
	return resp.status, []byte(resp.body), nil
}

type authError struct {
	provider string
	message  string
}

type signIn struct {
	user     providers.UserData
	info     providers.AuthInfo
	provider string
}

// recordingOutcomes remembers every outcome and redirect a dispatch produced.
type recordingOutcomes struct {
	notSupported []string
	authErrors   []authError
	signIns      []signIn
	redirects    []string
}

func (o *recordingOutcomes) ProviderNotSupported(provider string) {
	o.notSupported = append(o.notSupported, provider)
}

func (o *recordingOutcomes) AuthError(provider, message string) {
	o.authErrors = append(o.authErrors, authError{provider: provider, message: message})
}

func (o *recordingOutcomes) SignIn(user providers.UserData, info providers.AuthInfo, provider string) {
	o.signIns = append(o.signIns, signIn{user: user, info: info, provider: provider})
}

func (o *recordingOutcomes) total() int {
	return len(o.notSupported) + len(o.authErrors) + len(o.signIns) + len(o.redirects)
}

func newTestRequest(params url.Values, session Session) (*Request, *recordingOutcomes) {
	if params == nil {
		params = url.Values{}
	}
	if session == nil {
		session = sessions.NewSession()
	}
	outcomes := &recordingOutcomes{}
	return &Request{
		Context:  context.Background(),
		Params:   params,
		Session:  session,
		Redirect: func(u string) { outcomes.redirects = append(outcomes.redirects, u) },
		Outcomes: outcomes,
	}, outcomes
}

func testCallbackURL(provider string) string {
	return "https://host/cb"
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	var ferr *FlowError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected a *FlowError, got %#v", err)
	}
	if ferr.Kind != kind {
		t.Fatalf("expected error kind %q, got %q (%v)", kind, ferr.Kind, err)
	}
}
