package session

import (
	"net/http"
	"net/url"
	"sync"
	"time"
)

// DefaultTTL is how long a cached cookie stays valid after it was stored.
const DefaultTTL = 1000 * time.Second

type entry struct {
	value     string
	expiresAt time.Time
}

// Cache maps an exact Authorization credential string to the session cookies
// the backend issued for it. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	buckets map[string]map[string]entry
	now     func() time.Time
}

// New returns an empty Cache with DefaultTTL.
func New() *Cache {
	return &Cache{
		ttl:     DefaultTTL,
		buckets: make(map[string]map[string]entry),
		now:     time.Now,
	}
}

// Cookies returns the unexpired cookies stored for credential. Expired
// entries are purged. An empty credential never reads the cache.
func (c *Cache) Cookies(credential string) []*http.Cookie {
	if credential == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.buckets[credential]
	if bucket == nil {
		return nil
	}
	now := c.now()
	var out []*http.Cookie
	for name, e := range bucket {
		if now.After(e.expiresAt) {
			delete(bucket, name)
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: e.value})
	}
	if len(bucket) == 0 {
		delete(c.buckets, credential)
	}
	return out
}

// Put stores cookies for credential, overwriting any cookie of the same name.
// A cookie the backend expires (Max-Age 0 or an Expires in the past) is
// removed instead. An empty credential never writes the cache.
func (c *Cache) Put(credential string, cookies []*http.Cookie) {
	if credential == "" || len(cookies) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.buckets[credential]
	if bucket == nil {
		bucket = make(map[string]entry)
	}
	now := c.now()
	expiresAt := now.Add(c.ttl)
	for _, ck := range cookies {
		if ck == nil || ck.Name == "" {
			continue
		}
		if ck.MaxAge < 0 || (!ck.Expires.IsZero() && !ck.Expires.After(now)) {
			delete(bucket, ck.Name)
			continue
		}
		bucket[ck.Name] = entry{value: ck.Value, expiresAt: expiresAt}
	}
	if len(bucket) == 0 {
		delete(c.buckets, credential)
		return
	}
	c.buckets[credential] = bucket
}

// Clear drops every cached cookie.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.buckets = make(map[string]map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of credentials with at least one stored cookie,
// including cookies that have expired but not yet been purged.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

// Jar returns an http.CookieJar backed by the cache bucket of credential, or
// nil when credential is empty. The jar ignores the URL: a backend session is
// scoped to the credential, not to the port it was obtained on.
func (c *Cache) Jar(credential string) http.CookieJar {
	if credential == "" {
		return nil
	}
	return &jar{cache: c, credential: credential}
}

type jar struct {
	cache      *Cache
	credential string
}

func (j *jar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	j.cache.Put(j.credential, cookies)
}

func (j *jar) Cookies(_ *url.URL) []*http.Cookie {
	return j.cache.Cookies(j.credential)
}
