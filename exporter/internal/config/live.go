package config

import (
	"sync"
	"sync/atomic"
	"time"
)

// Live holds the configuration in use. Readers get a complete *Config from
// Current without locking; writers are serialized and publish a fully built
// configuration with a single atomic swap.
type Live struct {
	mu        sync.Mutex
	cfg       atomic.Pointer[Config]
	timestamp atomic.Int64
	domain    atomic.Pointer[string]
	now       func() time.Time
}

// NewLive returns a Live holding cfg, stamped with the current time.
func NewLive(cfg *Config) *Live {
	l := &Live{now: time.Now}
	l.cfg.Store(cfg)
	l.timestamp.Store(l.now().UnixMilli())
	return l
}

// Current returns the configuration in use. The result must not be modified.
func (l *Live) Current() *Config { return l.cfg.Load() }

// Timestamp returns the time of the last change in Unix milliseconds.
func (l *Live) Timestamp() int64 { return l.timestamp.Load() }

// Replace discards the current configuration in favour of cfg and returns
// the new timestamp. The discovered domain name is forgotten.
func (l *Live) Replace(cfg *Config) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publish(cfg)
	return l.stamp()
}

// Append merges the queries of more into the current configuration. On error
// the current configuration is unchanged.
func (l *Live) Append(more *Config) (*Config, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, err := Append(l.cfg.Load(), more)
	if err != nil {
		return nil, 0, err
	}
	l.cfg.Store(next)
	return next, l.stamp(), nil
}

// ApplyShared replaces the configuration with cfg when ts is newer than the
// local timestamp, adopting ts. It reports whether cfg was applied.
func (l *Live) ApplyShared(ts int64, cfg *Config) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ts <= l.timestamp.Load() {
		return false
	}
	l.publish(cfg)
	l.timestamp.Store(ts)
	return true
}

// DomainName returns the domain name discovered by the bootstrap query, or "".
func (l *Live) DomainName() string {
	if p := l.domain.Load(); p != nil {
		return *p
	}
	return ""
}

// SetDomainName records the discovered domain name.
func (l *Live) SetDomainName(name string) {
	l.domain.Store(&name)
}

func (l *Live) publish(cfg *Config) {
	l.cfg.Store(cfg)
	l.domain.Store(nil)
}

// stamp advances the timestamp to now, keeping it strictly increasing.
func (l *Live) stamp() int64 {
	ts := l.now().UnixMilli()
	if prev := l.timestamp.Load(); ts <= prev {
		ts = prev + 1
	}
	l.timestamp.Store(ts)
	return ts
}
