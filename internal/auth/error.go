package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/buzzfeed/authdispatch/internal/auth/providers"
	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
)

// ErrorKind separates flow failures in logs and metrics. Externally every kind
// except ErrConfiguration surfaces the same way.
type ErrorKind string

const (
	// ErrConfiguration is a missing key, secret, callback url or endpoint.
	ErrConfiguration ErrorKind = "configuration"
	// ErrProviderRejected is an error parameter, a bad status or a missing verifier or code.
	ErrProviderRejected ErrorKind = "provider_rejected"
	// ErrForgery is a state mismatch, an expired state or a missing request token.
	ErrForgery ErrorKind = "forgery"
	// ErrMalformedResponse is a provider response that could not be decoded.
	ErrMalformedResponse ErrorKind = "malformed_response"
	// ErrTransport is a failed outbound call.
	ErrTransport ErrorKind = "transport"
	// ErrInternal is a flow that panicked or could not produce randomness.
	ErrInternal ErrorKind = "internal"
)

// FlowError is the only error type flows return.
type FlowError struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Err      error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func newFlowError(kind ErrorKind, provider, message string, err error) *FlowError {
	return &FlowError{Kind: kind, Provider: provider, Message: message, Err: err}
}

// kindOf returns the kind of a FlowError anywhere in err's chain.
func kindOf(err error) ErrorKind {
	var ferr *FlowError
	if errors.As(err, &ferr) {
		return ferr.Kind
	}
	return ErrInternal
}

// classify maps errors from providers and profile fetchers onto flow error kinds.
func classify(provider, message string, err error) *FlowError {
	var (
		statusErr *providers.StatusError
		decodeErr *providers.DecodeError
	)
	switch {
	case errors.As(err, &statusErr):
		return newFlowError(ErrProviderRejected, provider, message, err)
	case errors.As(err, &decodeErr), errors.Is(err, providers.ErrMissingAccessToken):
		return newFlowError(ErrMalformedResponse, provider, message, err)
	}
	return newFlowError(ErrTransport, provider, message, err)
}

// HTTPError stores the status code and a message for a given HTTP error.
type HTTPError struct {
	Code    int
	Message string
}

// Error fulfills the error interface, returning a string representation of the error.
func (h HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", h.Code, http.StatusText(h.Code), h.Message)
}

// ErrorResponse writes a JSON error body.
func ErrorResponse(rw http.ResponseWriter, req *http.Request, message string, code int) {
	log.NewLogEntry().WithHTTPStatus(code).WithRequestURI(req.URL.RequestURI()).Info(message)

	var response struct {
		Error string `json:"error"`
	}
	response.Error = message
	writeJSONResponse(rw, code, response)
}
