// Package signing issues OAuth1 (RFC 5849) requests signed with HMAC-SHA1.
package signing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/dghubble/oauth1"

	"github.com/buzzfeed/authdispatch/internal/pkg/transport"
)

const (
	authorizationPrefix = "OAuth "
	formContentType     = "application/x-www-form-urlencoded"
)

// Client signs and sends requests on behalf of a consumer, optionally bound to
// a token and verifier. A Client is immutable once built.
type Client struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
	Verifier       string
	Callback       string

	Fetcher transport.Fetcher
	Signer  oauth1.Signer
	Noncer  oauth1.Noncer
	Clock   clock.Clock
}

// NewClient returns a Client for the consumer key and secret.
func NewClient(consumerKey, consumerSecret string, fetcher transport.Fetcher, optFuncs ...func(*Client) error) (*Client, error) {
	if consumerKey == "" || consumerSecret == "" {
		return nil, errors.New("consumer key and secret are required")
	}
	if fetcher == nil {
		return nil, errors.New("a fetcher is required")
	}

	c := &Client{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		Fetcher:        fetcher,
		Signer:         &oauth1.HMACSigner{ConsumerSecret: consumerSecret},
		Noncer:         oauth1.Base64Noncer{},
		Clock:          clock.New(),
	}

	for _, f := range optFuncs {
		err := f(c)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetToken binds the client to a token pair.
func SetToken(token, tokenSecret string) func(*Client) error {
	return func(c *Client) error {
		c.Token = token
		c.TokenSecret = tokenSecret
		return nil
	}
}

// SetVerifier adds oauth_verifier to every signed request.
func SetVerifier(verifier string) func(*Client) error {
	return func(c *Client) error {
		c.Verifier = verifier
		return nil
	}
}

// SetCallback adds oauth_callback to every signed request.
func SetCallback(callback string) func(*Client) error {
	return func(c *Client) error {
		c.Callback = callback
		return nil
	}
}

// Request signs and sends a request. For POST, params travel form-encoded in
// the body; for every other method they are appended to the query string.
func (c *Client) Request(ctx context.Context, method, rawURL string, params url.Values) (int, []byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, nil, err
	}
	method = strings.ToUpper(method)

	var body []byte
	header := http.Header{}
	if method == http.MethodPost {
		body = []byte(params.Encode())
		header.Set("Content-Type", formContentType)
	} else if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	authorization, err := c.authorization(method, u, params)
	if err != nil {
		return 0, nil, err
	}
	header.Set("Authorization", authorization)

	return c.Fetcher.Fetch(ctx, method, u.String(), header, body)
}

// authorization builds the Authorization header value for a request.
func (c *Client) authorization(method string, u *url.URL, bodyParams url.Values) (string, error) {
	oauthParams := c.oauthParams()

	all := url.Values{}
	for k, vs := range u.Query() {
		all[k] = append(all[k], vs...)
	}
	if method == http.MethodPost {
		for k, vs := range bodyParams {
			all[k] = append(all[k], vs...)
		}
	}
	for k, v := range oauthParams {
		all.Set(k, v)
	}

	signature, err := c.Signer.Sign(c.TokenSecret, BaseString(method, u, all))
	if err != nil {
		return "", err
	}
	oauthParams["oauth_signature"] = signature

	header := url.Values{}
	for k, v := range oauthParams {
		header.Set(k, v)
	}
	return authorizationPrefix + strings.Join(sortedPairs(header, `%s="%s"`), ", "), nil
}

func (c *Client) oauthParams() map[string]string {
	params := map[string]string{
		"oauth_consumer_key":     c.ConsumerKey,
		"oauth_nonce":            c.Noncer.Nonce(),
		"oauth_signature_method": c.Signer.Name(),
		"oauth_timestamp":        strconv.FormatInt(c.Clock.Now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if c.Token != "" {
		params["oauth_token"] = c.Token
	}
	if c.Verifier != "" {
		params["oauth_verifier"] = c.Verifier
	}
	if c.Callback != "" {
		params["oauth_callback"] = c.Callback
	}
	return params
}

// BaseString returns the signature base string: the method, the base URI and
// the normalized parameters, each percent encoded and joined with "&". Every
// value of a repeated parameter is signed.
func BaseString(method string, u *url.URL, params url.Values) string {
	normalized := strings.Join(sortedPairs(params, "%s=%s"), "&")
	return strings.Join([]string{
		strings.ToUpper(method),
		oauth1.PercentEncode(baseURI(u)),
		oauth1.PercentEncode(normalized),
	}, "&")
}

// baseURI lowercases scheme and host, drops default ports and the query.
func baseURI(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" {
		if !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
			host = host + ":" + port
		}
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, u.EscapedPath())
}

// sortedPairs percent encodes params and formats them sorted by key, then by
// value for repeated keys.
func sortedPairs(params url.Values, format string) []string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		ek := oauth1.PercentEncode(k)
		for _, v := range vs {
			pairs = append(pairs, pair{ek, oauth1.PercentEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = fmt.Sprintf(format, p.k, p.v)
	}
	return out
}

// ParseAuthorization splits an OAuth Authorization header into its decoded
// parameters. It is the inverse of the header Request sets.
func ParseAuthorization(header string) (map[string]string, error) {
	if !strings.HasPrefix(header, authorizationPrefix) {
		return nil, errors.New("not an OAuth authorization header")
	}
	params := map[string]string{}
	for _, part := range strings.Split(strings.TrimPrefix(header, authorizationPrefix), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("malformed authorization parameter %q", part)
		}
		key, err := url.PathUnescape(k)
		if err != nil {
			return nil, err
		}
		val, err := url.PathUnescape(strings.Trim(v, `"`))
		if err != nil {
			return nil, err
		}
		params[key] = val
	}
	return params, nil
}
