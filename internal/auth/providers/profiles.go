package providers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
	"github.com/buzzfeed/authdispatch/internal/pkg/signing"
	"github.com/buzzfeed/authdispatch/internal/pkg/transport"
)

const (
	facebookProfileURL    = "https://graph.facebook.com/me"
	windowsLiveProfileURL = "https://apis.live.net/v5.0/me"
	windowsLiveAvatarURL  = "https://apis.live.net/v5.0/%v/picture"
	linkedInProfileURL    = "http://api.linkedin.com/v1/people/~:(id,first-name,last-name,picture-url,public-profile-url,headline)"
	twitterProfileURL     = "https://api.twitter.com/1/account/verify_credentials.json"
	twitterLinkPrefix     = "http://twitter.com/"
)

// JSONProfile fetches a JSON profile document, passing the OAuth2 access token
// as the access_token query parameter.
type JSONProfile struct {
	URL       string
	Fetcher   transport.Fetcher
	Normalize func(UserData)
}

var _ ProfileFetcher = &JSONProfile{}

// FetchProfile fulfills the ProfileFetcher interface.
func (p *JSONProfile) FetchProfile(ctx context.Context, info AuthInfo, creds Credentials) (UserData, error) {
	token := info.String("access_token")
	if token == "" {
		return nil, ErrMissingAccessToken
	}

	endpoint, err := withQuery(p.URL, url.Values{"access_token": {token}})
	if err != nil {
		return nil, err
	}

	status, body, err := p.Fetcher.Fetch(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		log.NewLogEntry().WithEndpoint(stripToken(endpoint)).WithHTTPStatus(status).WithResponseBody(body).Info(
			"profile request failed")
		return nil, &StatusError{Endpoint: stripToken(endpoint), Code: status}
	}

	user := UserData{}
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, &DecodeError{Format: "json", Err: err}
	}
	if p.Normalize != nil {
		p.Normalize(user)
	}
	return user, nil
}

// addLiveAvatar sets avatar_url from the profile id.
func addLiveAvatar(user UserData) {
	if id, ok := user["id"]; ok && id != nil {
		user["avatar_url"] = fmt.Sprintf(windowsLiveAvatarURL, id)
	}
}

// LinkedInProfile fetches the XML people profile with an OAuth1 signed request.
type LinkedInProfile struct {
	URL     string
	Fetcher transport.Fetcher
}

var _ ProfileFetcher = &LinkedInProfile{}

type xmlNode struct {
	XMLName xml.Name
	Nodes   []xmlNode `xml:",any"`
	Text    string    `xml:",chardata"`
}

// FetchProfile fulfills the ProfileFetcher interface. Each child element of the
// document root becomes a key holding its text.
func (p *LinkedInProfile) FetchProfile(ctx context.Context, info AuthInfo, creds Credentials) (UserData, error) {
	token := info.String("oauth_token")
	if token == "" {
		return nil, ErrMissingAccessToken
	}

	body, err := signedGet(ctx, p.Fetcher, p.URL, token, info.String("oauth_token_secret"), creds)
	if err != nil {
		return nil, err
	}

	var root xmlNode
	if err := xml.Unmarshal(body, &root); err != nil {
		return nil, &DecodeError{Format: "xml", Err: err}
	}

	user := UserData{}
	for _, n := range root.Nodes {
		user[n.XMLName.Local] = strings.TrimSpace(n.Text)
	}
	return user, nil
}

// TwitterProfile fetches the verify_credentials document with an OAuth1
// signed request.
type TwitterProfile struct {
	URL     string
	Fetcher transport.Fetcher
}

var _ ProfileFetcher = &TwitterProfile{}

// FetchProfile fulfills the ProfileFetcher interface. A missing link is
// derived from screen_name.
func (p *TwitterProfile) FetchProfile(ctx context.Context, info AuthInfo, creds Credentials) (UserData, error) {
	token := info.String("oauth_token")
	if token == "" {
		return nil, ErrMissingAccessToken
	}

	body, err := signedGet(ctx, p.Fetcher, p.URL, token, info.String("oauth_token_secret"), creds)
	if err != nil {
		return nil, err
	}

	user := UserData{}
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, &DecodeError{Format: "json", Err: err}
	}
	if user.String("link") == "" {
		if name := user.String("screen_name"); name != "" {
			user["link"] = twitterLinkPrefix + name
		}
	}
	return user, nil
}

// signedGet issues a GET signed with the consumer credentials and the access
// token. Anything but a 200 is a StatusError.
func signedGet(ctx context.Context, fetcher transport.Fetcher, endpoint, token, secret string, creds Credentials) ([]byte, error) {
	client, err := signing.NewClient(creds.Key, creds.Secret, fetcher, signing.SetToken(token, secret))
	if err != nil {
		return nil, err
	}

	status, body, err := client.Request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		log.NewLogEntry().WithEndpoint(endpoint).WithHTTPStatus(status).WithResponseBody(body).Info(
			"profile request failed")
		return nil, &StatusError{Endpoint: endpoint, Code: status}
	}
	return body, nil
}
