package sessions

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buzzfeed/authdispatch/internal/pkg/testutil"
)

func TestNewRedisStore(t *testing.T) {
	testCases := []struct {
		name           string
		optFuncs       []func(*RedisStore) error
		expectedError  bool
		expectedClient bool
	}{
		{
			name:          "default with no opt funcs set",
			expectedError: true,
		},
		{
			name:          "opt func with an error returns an error",
			optFuncs:      []func(*RedisStore) error{func(*RedisStore) error { return fmt.Errorf("error") }},
			expectedError: true,
		},
		{
			name: "sentinel without master name",
			optFuncs: []func(*RedisStore) error{func(s *RedisStore) error {
				s.UseSentinel = true
				s.SentinelConnectionURLs = []string{"localhost:26379"}
				return nil
			}},
			expectedError: true,
		},
		{
			name: "invalid connection url",
			optFuncs: []func(*RedisStore) error{func(s *RedisStore) error {
				s.ConnectionURL = "http://localhost:6379"
				return nil
			}},
			expectedError: true,
		},
		{
			name: "connection url",
			optFuncs: []func(*RedisStore) error{func(s *RedisStore) error {
				s.ConnectionURL = "redis://localhost:6379/0"
				s.CookieExpire = time.Hour
				return nil
			}},
			expectedClient: true,
		},
		{
			name: "sentinel config",
			optFuncs: []func(*RedisStore) error{func(s *RedisStore) error {
				s.UseSentinel = true
				s.SentinelMasterName = "mymaster"
				s.SentinelConnectionURLs = []string{"localhost:26379"}
				return nil
			}},
			expectedClient: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewRedisStore("cookieName", tc.optFuncs...)
			if tc.expectedError {
				testutil.NotEqual(t, err, nil)
				return
			}
			testutil.Ok(t, err)
			if tc.expectedClient {
				testutil.Assert(t, store.client != nil, "expected a redis client")
			}
			testutil.Equal(t, "cookieName", store.Name)
		})
	}
}

func TestRedisStoreLoadWithoutCookie(t *testing.T) {
	store, err := NewRedisStore("cookieName", func(s *RedisStore) error {
		s.ConnectionURL = "redis://localhost:6379/0"
		return nil
	})
	testutil.Ok(t, err)

	req := httptest.NewRequest("GET", "http://www.example.com/", nil)
	session, err := store.Load(req)
	testutil.Ok(t, err)
	testutil.Assert(t, session.Empty(), "expected an empty session")
	testutil.Equal(t, "", session.ID)
}

func TestRedisStoreKey(t *testing.T) {
	store, err := NewRedisStore("cookieName", func(s *RedisStore) error {
		s.ConnectionURL = "redis://localhost:6379/0"
		s.KeyPrefix = "auth"
		return nil
	})
	testutil.Ok(t, err)
	testutil.Equal(t, "auth:abc", store.key("abc"))
}
