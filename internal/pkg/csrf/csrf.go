package csrf

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
)

const (
	// DefaultTimeout is how long a generated token stays valid.
	DefaultTimeout = time.Hour
	// DefaultLength is the number of random characters in a token secret.
	DefaultLength = 30

	delimiter = ":"
	pool      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" +
		"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// Codec generates and validates time-bound anti-forgery tokens. A token is the
// padded base64url encoding of "<secret>:<unix seconds>".
type Codec struct {
	Clock   clock.Clock
	Timeout time.Duration
	Length  int
}

// NewCodec returns a Codec with the default timeout and secret length.
func NewCodec(optFuncs ...func(*Codec) error) (*Codec, error) {
	c := &Codec{
		Clock:   clock.New(),
		Timeout: DefaultTimeout,
		Length:  DefaultLength,
	}

	for _, f := range optFuncs {
		err := f(c)
		if err != nil {
			return nil, err
		}
	}

	if c.Length <= 0 {
		return nil, errors.New("csrf secret length must be positive")
	}
	return c, nil
}

// SetTimeout overrides the token validity window.
func SetTimeout(timeout time.Duration) func(*Codec) error {
	return func(c *Codec) error {
		if timeout <= 0 {
			return errors.New("csrf timeout must be positive")
		}
		c.Timeout = timeout
		return nil
	}
}

// Generate returns a new token stamped with the current time.
func (c *Codec) Generate() (string, error) {
	secret, err := randomString(c.Length)
	if err != nil {
		return "", err
	}
	now := c.Clock.Now().Unix()
	raw := secret + delimiter + strconv.FormatInt(now, 10)
	return base64.URLEncoding.EncodeToString([]byte(raw)), nil
}

// Validate reports whether actual is the token that was issued as expected and
// whether that token is still inside the timeout window. The raw strings must
// match exactly before the token is decoded. Validate never fails loudly; any
// malformed token is simply invalid.
func (c *Codec) Validate(expected, actual string) bool {
	if expected == "" || expected != actual {
		return false
	}

	decoded, err := base64.URLEncoding.DecodeString(expected)
	if err != nil {
		return false
	}

	raw := string(decoded)
	i := strings.LastIndex(raw, delimiter)
	if i < 0 {
		return false
	}
	secret, stamp := raw[:i], raw[i+len(delimiter):]
	if secret == "" {
		return false
	}

	issued, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return false
	}

	issuedAt := time.Unix(issued, 0)
	if c.Clock.Now().Sub(issuedAt) > c.Timeout {
		log.NewLogEntry().WithIssuedAt(issuedAt).Error(
			errors.New("csrf token expired"),
			"csrf token timeout exceeded")
		return false
	}
	return true
}

// randomString draws n characters uniformly from pool. Bytes that would bias
// the modulo are discarded.
func randomString(n int) (string, error) {
	limit := byte(256 - (256 % len(pool)))
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, pool[int(b)%len(pool)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
