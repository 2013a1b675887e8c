package sessions

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ Store = &RedisStore{}

// RedisStore keeps session values in redis. The browser only carries the session id.
type RedisStore struct {
	CookieStore
	ConnectionURL          string
	UseSentinel            bool
	SentinelMasterName     string
	SentinelConnectionURLs []string
	KeyPrefix              string

	client *redis.Client
}

// NewRedisStore returns a RedisStore once either a connection url or a sentinel
// config has been supplied through optFuncs. No connection is made here.
func NewRedisStore(cookieName string, optFuncs ...func(*RedisStore) error) (*RedisStore, error) {
	r := &RedisStore{
		CookieStore: CookieStore{
			Name:           cookieName,
			CookieSecure:   true,
			CookieHTTPOnly: true,
			CookieExpire:   168 * time.Hour,
		},
		KeyPrefix: "authdispatch:session",
	}

	for _, f := range optFuncs {
		err := f(r)
		if err != nil {
			return nil, err
		}
	}

	if r.UseSentinel {
		if r.SentinelMasterName == "" || len(r.SentinelConnectionURLs) == 0 {
			return nil, errors.New("must provide redis connection url or sentinel config")
		}
		r.client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    r.SentinelMasterName,
			SentinelAddrs: r.SentinelConnectionURLs,
		})
		return r, nil
	}

	if r.ConnectionURL == "" {
		return nil, errors.New("must provide redis connection url or sentinel config")
	}
	opts, err := redis.ParseURL(r.ConnectionURL)
	if err != nil {
		return nil, err
	}
	r.client = redis.NewClient(opts)
	return r, nil
}

func (r *RedisStore) key(id string) string {
	return r.KeyPrefix + ":" + id
}

// Load fetches the values stored for the session id in the request cookie.
func (r *RedisStore) Load(req *http.Request) (*Session, error) {
	c, err := req.Cookie(r.Name)
	if err == http.ErrNoCookie {
		return NewSession(), nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := r.client.Get(req.Context(), r.key(c.Value)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	session := &Session{ID: c.Value, Values: map[string]string{}}
	if err := json.Unmarshal([]byte(raw), &session.Values); err != nil {
		return nil, err
	}
	return session, nil
}

// Save writes the session values with the cookie expiry as their ttl.
func (r *RedisStore) Save(rw http.ResponseWriter, req *http.Request, session *Session) error {
	if session.Empty() {
		if session.ID != "" {
			if err := r.client.Del(req.Context(), r.key(session.ID)).Err(); err != nil {
				return err
			}
		}
		r.CookieStore.Clear(rw, req)
		return nil
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	raw, err := json.Marshal(session.Values)
	if err != nil {
		return err
	}
	if err := r.client.Set(req.Context(), r.key(session.ID), raw, r.CookieExpire).Err(); err != nil {
		return err
	}

	r.setCookie(rw, req, session.ID)
	return nil
}

// Clear deletes the stored values and expires the cookie.
func (r *RedisStore) Clear(rw http.ResponseWriter, req *http.Request) {
	if c, err := req.Cookie(r.Name); err == nil && c.Value != "" {
		r.client.Del(req.Context(), r.key(c.Value))
	}
	r.CookieStore.Clear(rw, req)
}
