package auth

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
)

// NewStatsdClient returns a statsd client with the service namespace and tags set.
func NewStatsdClient(host string, port int) (*statsd.Client, error) {
	return statsd.New(net.JoinHostPort(host, strconv.Itoa(port)),
		statsd.WithNamespace("authdispatch."),
		statsd.WithTags([]string{
			"service:authdispatch",
		}),
	)
}

// GetActionTag returns the tag associated with a route
func GetActionTag(req *http.Request) string {
	path := req.URL.Path
	if path == "/ping" {
		return "ping"
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "auth" || parts[1] == "" {
		return "unknown"
	}
	switch {
	case len(parts) == 2:
		return "initiate"
	case len(parts) == 3 && parts[2] == "callback":
		return "callback"
	}
	return "unknown"
}

// getProviderTag returns the provider segment of an /auth/ path, or "unknown".
func getProviderTag(req *http.Request) string {
	parts := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "auth" && parts[1] != "" {
		return parts[1]
	}
	return "unknown"
}

// logRequestMetrics logs all metrics surrounding a given request to the metricsWriter
func logRequestMetrics(req *http.Request, requestDuration time.Duration, status int, StatsdClient statsd.ClientInterface) {
	tags := []string{
		fmt.Sprintf("method:%s", req.Method),
		fmt.Sprintf("status_code:%d", status),
		fmt.Sprintf("status_category:%dxx", status/100),
		fmt.Sprintf("provider:%s", getProviderTag(req)),
		fmt.Sprintf("action:%s", GetActionTag(req)),
	}

	// TODO: eventually make rates configurable
	StatsdClient.Timing("request", requestDuration, tags, 1.0)
}

// outcomeTags are the tags for a dispatcher outcome counter.
func outcomeTags(action, provider, outcome string, kind ErrorKind) []string {
	tags := []string{
		fmt.Sprintf("action:%s", action),
		fmt.Sprintf("provider:%s", provider),
		fmt.Sprintf("outcome:%s", outcome),
	}
	if kind != "" {
		tags = append(tags, fmt.Sprintf("error:%s", kind))
	}
	return tags
}
