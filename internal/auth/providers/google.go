package providers

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	log "github.com/buzzfeed/authdispatch/internal/pkg/logging"
)

// GoogleProfile fetches the signed in user's profile from the Google userinfo API.
type GoogleProfile struct {
	// Endpoint overrides the API base path. Empty uses the library default.
	Endpoint string
	Client   *http.Client
}

var _ ProfileFetcher = &GoogleProfile{}

// FetchProfile fulfills the ProfileFetcher interface.
func (p *GoogleProfile) FetchProfile(ctx context.Context, info AuthInfo, creds Credentials) (UserData, error) {
	token := info.String("access_token")
	if token == "" {
		return nil, ErrMissingAccessToken
	}

	if p.Client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.Client)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   info.String("token_type"),
	}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.Endpoint))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}

	ui, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			log.NewLogEntry().WithProvider("google").WithHTTPStatus(gerr.Code).Info(
				"userinfo request failed")
			return nil, &StatusError{Endpoint: "userinfo", Code: gerr.Code}
		}
		return nil, err
	}

	user := UserData{
		"id":          ui.Id,
		"email":       ui.Email,
		"name":        ui.Name,
		"given_name":  ui.GivenName,
		"family_name": ui.FamilyName,
		"picture":     ui.Picture,
		"link":        ui.Link,
		"locale":      ui.Locale,
	}
	if ui.VerifiedEmail != nil {
		user["verified_email"] = *ui.VerifiedEmail
	}
	if ui.Hd != "" {
		user["hd"] = ui.Hd
	}
	return user, nil
}
