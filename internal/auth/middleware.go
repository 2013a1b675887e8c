package auth

import (
	"fmt"
	"net/http"
)

// With inspiration from https://github.com/unrolled/secure and
// https://content-security-policy.com
var securityHeaders = map[string]string{
	"Strict-Transport-Security": "max-age=31536000",
	"X-Frame-Options":           "DENY",
	"X-Content-Type-Options":    "nosniff",
	"X-XSS-Protection":          "1; mode=block",
	"Content-Security-Policy":   "default-src 'none';",
	"Referrer-Policy":           "Same-origin",
	"Cache-Control":             "no-store",
}

// setHeaders ensures that every response includes some basic security headers
func setHeaders(h http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		for key, val := range securityHeaders {
			rw.Header().Set(key, val)
		}
		h.ServeHTTP(rw, req)
	})
}

// withMethods writes an error response if the method of the request is not included.
func (p *Authenticator) withMethods(f http.HandlerFunc, methods ...string) http.HandlerFunc {
	methodMap := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		methodMap[m] = struct{}{}
	}
	return func(rw http.ResponseWriter, req *http.Request) {
		if _, ok := methodMap[req.Method]; !ok {
			tags := []string{
				fmt.Sprintf("action:%s", GetActionTag(req)),
				"error:method_not_allowed",
			}
			p.StatsdClient.Incr("application_error", tags, 1.0)
			ErrorResponse(rw, req, fmt.Sprintf("method %s not allowed", req.Method), http.StatusMethodNotAllowed)
			return
		}
		f(rw, req)
	}
}
