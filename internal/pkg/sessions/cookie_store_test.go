package sessions

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buzzfeed/authdispatch/internal/pkg/testutil"
)

var testEncodedCookieSecret, _ = base64.StdEncoding.DecodeString("qICChm3wdjbjcWymm7PefwtPP6/PZv+udkFEubTeE38=")

func TestCreateMiscreantCookieCipher(t *testing.T) {
	testCases := []struct {
		name          string
		cookieSecret  []byte
		expectedError bool
	}{
		{
			name:         "normal case with base64 encoded secret",
			cookieSecret: testEncodedCookieSecret,
		},

		{
			name:          "error when not base64 encoded",
			cookieSecret:  []byte("abcd"),
			expectedError: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCookieStore("cookieName", CreateMiscreantCookieCipher(tc.cookieSecret))
			if !tc.expectedError {
				testutil.Ok(t, err)
			} else {
				testutil.NotEqual(t, err, nil)
			}
		})
	}
}

func TestNewCookieStore(t *testing.T) {
	testCases := []struct {
		name          string
		optFuncs      []func(*CookieStore) error
		expectedError bool
		expectedStore *CookieStore
	}{
		{
			name: "default with no opt funcs set",
			expectedStore: &CookieStore{
				Name:           "cookieName",
				CookieSecure:   true,
				CookieHTTPOnly: true,
				CookieExpire:   168 * time.Hour,
			},
		},
		{
			name:          "opt func with an error returns an error",
			optFuncs:      []func(*CookieStore) error{func(*CookieStore) error { return fmt.Errorf("error") }},
			expectedError: true,
		},
		{
			name: "opt func overrides default values",
			optFuncs: []func(*CookieStore) error{func(s *CookieStore) error {
				s.CookieExpire = time.Hour
				return nil
			}},
			expectedStore: &CookieStore{
				Name:           "cookieName",
				CookieSecure:   true,
				CookieHTTPOnly: true,
				CookieExpire:   time.Hour,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewCookieStore("cookieName", tc.optFuncs...)
			if tc.expectedError {
				testutil.NotEqual(t, err, nil)
			} else {
				testutil.Ok(t, err)
			}
			testutil.Equal(t, tc.expectedStore, store)
		})
	}
}

func TestMakeCookie(t *testing.T) {
	now := time.Now()
	expiration := time.Hour
	testCases := []struct {
		name           string
		host           string
		optFuncs       []func(*CookieStore) error
		expectedCookie *http.Cookie
	}{
		{
			name: "default cookie domain",
			host: "http://www.example.com",
			expectedCookie: &http.Cookie{
				Name:     "cookieName",
				Value:    "cookieValue",
				Path:     "/",
				Domain:   "www.example.com",
				HttpOnly: true,
				Secure:   true,
				Expires:  now.Add(expiration),
			},
		},
		{
			name: "port is stripped from the request host",
			host: "http://www.example.com:8080",
			expectedCookie: &http.Cookie{
				Name:     "cookieName",
				Value:    "cookieValue",
				Path:     "/",
				Domain:   "www.example.com",
				HttpOnly: true,
				Secure:   true,
				Expires:  now.Add(expiration),
			},
		},
		{
			name: "custom cookie domain set",
			host: "http://www.example.com",
			optFuncs: []func(*CookieStore) error{
				func(s *CookieStore) error {
					s.CookieDomain = "buzzfeed.com"
					return nil
				},
			},
			expectedCookie: &http.Cookie{
				Name:     "cookieName",
				Value:    "cookieValue",
				Path:     "/",
				Domain:   "buzzfeed.com",
				HttpOnly: true,
				Secure:   true,
				Expires:  now.Add(expiration),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewCookieStore("cookieName", tc.optFuncs...)
			testutil.Ok(t, err)
			req := httptest.NewRequest("GET", tc.host, nil)
			cookie := store.makeCookie(req, "cookieValue", expiration, now)
			testutil.Equal(t, tc.expectedCookie, cookie)
		})
	}
}

func TestCookieStoreSaveAndLoad(t *testing.T) {
	store, err := NewCookieStore("_authdispatch", CreateMiscreantCookieCipher(testEncodedCookieSecret))
	testutil.Ok(t, err)

	session := NewSession()
	session.Set("oauth2_state", "c3RhdGU6MTYwMDAwMDAwMA==")

	req := httptest.NewRequest("GET", "http://www.example.com/auth/google", nil)
	rw := httptest.NewRecorder()
	testutil.Ok(t, store.Save(rw, req, session))

	cookies := rw.Result().Cookies()
	testutil.Equal(t, 1, len(cookies))
	testutil.Equal(t, "_authdispatch", cookies[0].Name)
	testutil.Assert(t, cookies[0].Value != "", "expected a non-empty cookie value")

	next := httptest.NewRequest("GET", "http://www.example.com/auth/google/callback", nil)
	next.AddCookie(cookies[0])
	loaded, err := store.Load(next)
	testutil.Ok(t, err)
	testutil.Equal(t, session.Values, loaded.Values)
	testutil.Assert(t, !loaded.Modified(), "expected freshly loaded session to be unmodified")
}

func TestCookieStoreLoadWithoutCookie(t *testing.T) {
	store, err := NewCookieStore("_authdispatch", CreateMiscreantCookieCipher(testEncodedCookieSecret))
	testutil.Ok(t, err)

	req := httptest.NewRequest("GET", "http://www.example.com/", nil)
	session, err := store.Load(req)
	testutil.Ok(t, err)
	testutil.Assert(t, session.Empty(), "expected an empty session")
}

func TestCookieStoreLoadRejectsTamperedCookie(t *testing.T) {
	store, err := NewCookieStore("_authdispatch", CreateMiscreantCookieCipher(testEncodedCookieSecret))
	testutil.Ok(t, err)

	req := httptest.NewRequest("GET", "http://www.example.com/", nil)
	req.AddCookie(&http.Cookie{Name: "_authdispatch", Value: "bm90IGEgcmVhbCBzZXNzaW9uIGNvb2tpZSB2YWx1ZQ"})
	_, err = store.Load(req)
	testutil.NotEqual(t, err, nil)
}

func TestCookieStoreSaveEmptySessionExpiresCookie(t *testing.T) {
	store, err := NewCookieStore("_authdispatch", CreateMiscreantCookieCipher(testEncodedCookieSecret))
	testutil.Ok(t, err)

	req := httptest.NewRequest("GET", "http://www.example.com/", nil)
	rw := httptest.NewRecorder()
	testutil.Ok(t, store.Save(rw, req, NewSession()))

	cookies := rw.Result().Cookies()
	testutil.Equal(t, 1, len(cookies))
	testutil.Equal(t, "", cookies[0].Value)
	testutil.Assert(t, cookies[0].Expires.Before(time.Now()), "expected cookie to be expired")
}
