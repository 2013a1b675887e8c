package providers

import (
	"context"
)

// MockProfile is a ProfileFetcher that returns canned values and records calls.
type MockProfile struct {
	User UserData
	Err  error

	Calls     int
	LastInfo  AuthInfo
	LastCreds Credentials
}

var _ ProfileFetcher = &MockProfile{}

// FetchProfile fulfills the ProfileFetcher interface.
func (m *MockProfile) FetchProfile(ctx context.Context, info AuthInfo, creds Credentials) (UserData, error) {
	m.Calls++
	m.LastInfo = info
	m.LastCreds = creds
	if m.Err != nil {
		return nil, m.Err
	}
	return m.User, nil
}
