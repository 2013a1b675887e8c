package logging

import (
	"os"
	"time"

	logrus "github.com/sirupsen/logrus"
)

var serviceName = "authdispatch"

func init() {
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05.000Z"})
}

// SetServiceName configures the service name to log with each LogEntry.
func SetServiceName(name string) {
	serviceName = name
}

// SetLevel parses a logrus level name and applies it to the standard logger.
// Unknown names leave the current level in place and return the parse error.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	return nil
}

// LogEntry is a wrapper around a logrus entry
type LogEntry struct {
	logger *logrus.Entry
}

// NewLogEntry creates a new logrus Entry
func NewLogEntry() *LogEntry {
	return &LogEntry{logger: logrus.WithField("service", serviceName)}
}

// Info wraps the logrus Info function
func (l *LogEntry) Info(args ...interface{}) {
	l.logger.Info(args...)
}

// Warn wraps the logrus Warn function
func (l *LogEntry) Warn(args ...interface{}) {
	l.logger.Warn(args...)
}

// Error wraps the logrus Error function
func (l *LogEntry) Error(err interface{}, args ...interface{}) {
	l.withField("error", err).logger.Error(args...)
}

// Fatal wraps the logrus Fatal function
func (l *LogEntry) Fatal(args ...interface{}) {
	l.logger.Fatal(args...)
}

// Debug wraps the logrus Debug function
func (l *LogEntry) Debug(args ...interface{}) {
	l.logger.Debug(args...)
}

func (l *LogEntry) withField(key string, val interface{}) *LogEntry {
	return &LogEntry{l.logger.WithField(key, val)}
}

// WithAction appends an `action` tag to a LogEntry indicating the URL action triggered.
func (l *LogEntry) WithAction(action string) *LogEntry {
	return l.withField("action", action)
}

// WithAuthFamily appends an `auth_family` tag to a LogEntry.
func (l *LogEntry) WithAuthFamily(family string) *LogEntry {
	return l.withField("auth_family", family)
}

// WithCookieDomain appends a `cookie_domain` tag to a LogEntry.
func (l *LogEntry) WithCookieDomain(domain string) *LogEntry {
	return l.withField("cookie_domain", domain)
}

// WithCookieName appends a `cookie_name` tag to a LogEntry.
func (l *LogEntry) WithCookieName(name string) *LogEntry {
	return l.withField("cookie_name", name)
}

// WithEndpoint appends an `endpoint` tag to a LogEntry.
func (l *LogEntry) WithEndpoint(endpoint string) *LogEntry {
	return l.withField("endpoint", endpoint)
}

// WithError appends an `error` tag to a LogEntry. Useful for annotating non-Error log
// entries (e.g. Fatal messages) with an `error` object.
func (l *LogEntry) WithError(err error) *LogEntry {
	return l.withField("error", err)
}

// WithErrorKind appends an `error_kind` tag to a LogEntry.
func (l *LogEntry) WithErrorKind(kind string) *LogEntry {
	return l.withField("error_kind", kind)
}

// WithHTTPStatus appends an `http_status` tag to a LogEntry.
func (l *LogEntry) WithHTTPStatus(status int) *LogEntry {
	return l.withField("http_status", status)
}

// WithIssuedAt appends an `issued_at` tag to a LogEntry.
func (l *LogEntry) WithIssuedAt(issuedAt time.Time) *LogEntry {
	return l.withField("issued_at", issuedAt)
}

// WithProvider appends a `provider` tag to a LogEntry.
func (l *LogEntry) WithProvider(provider string) *LogEntry {
	return l.withField("provider", provider)
}

// WithRedirectURL appends a `redirect_url` tag to a LogEntry.
func (l *LogEntry) WithRedirectURL(url string) *LogEntry {
	return l.withField("redirect_url", url)
}

// WithRemoteAddress appends a `remote_address` tag to a LogEntry.
func (l *LogEntry) WithRemoteAddress(address string) *LogEntry {
	return l.withField("remote_address", address)
}

// WithRequestDurationMs appends a `request_duration` tag to a LogEntry.
func (l *LogEntry) WithRequestDurationMs(duration float64) *LogEntry {
	return l.withField("request_duration", duration)
}

// WithRequestURI appends a `request_uri` tag to a LogEntry.
func (l *LogEntry) WithRequestURI(uri string) *LogEntry {
	return l.withField("request_uri", uri)
}

// WithRequestMethod appends a `request_method` tag to a LogEntry.
func (l *LogEntry) WithRequestMethod(method string) *LogEntry {
	return l.withField("request_method", method)
}

// WithResponseBody appends a `response_body` tag to a LogEntry.
func (l *LogEntry) WithResponseBody(body []byte) *LogEntry {
	return l.withField("response_body", string(body))
}

// WithSessionStore appends a `session_store` tag to a LogEntry.
func (l *LogEntry) WithSessionStore(store string) *LogEntry {
	return l.withField("session_store", store)
}

// WithStatsdHost appends a `statsd_host` tag to a LogEntry.
func (l *LogEntry) WithStatsdHost(host string) *LogEntry {
	return l.withField("statsd_host", host)
}

// WithStatsdPort appends a `statsd_port` tag to a LogEntry.
func (l *LogEntry) WithStatsdPort(port int) *LogEntry {
	return l.withField("statsd_port", port)
}

// WithURLParam appends a `url_param` tag to a LogEntry.
func (l *LogEntry) WithURLParam(param string) *LogEntry {
	return l.withField("url_param", param)
}

// WithUser appends a `user` tag to a LogEntry.
func (l *LogEntry) WithUser(user string) *LogEntry {
	return l.withField("user", user)
}

// WithUserAgent appends a `user_agent` tag to a LogEntry.
func (l *LogEntry) WithUserAgent(agent string) *LogEntry {
	return l.withField("user_agent", agent)
}
