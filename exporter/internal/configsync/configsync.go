package configsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/restexporter/restexporter/exporter/internal/config"
	"github.com/restexporter/restexporter/pkg/types"
)

const requestTimeout = 10 * time.Second

// Options configures a Syncer.
type Options struct {
	// URL is the coordinator configuration endpoint.
	URL string

	// StreamURL is the coordinator websocket update stream. Optional.
	StreamURL string

	// Interval is the polling period.
	Interval time.Duration

	// APIKey is sent in Header on every request when set.
	APIKey string
	Header string

	// OnApply is called after a shared configuration replaced the local one.
	OnApply func(*config.Config)
}

// Syncer pulls and pushes the live configuration.
type Syncer struct {
	opts   Options
	live   *config.Live
	client *http.Client
	dialer *websocket.Dialer
}

// New returns a Syncer for live.
func New(live *config.Live, opts Options) *Syncer {
	return &Syncer{
		opts:   opts,
		live:   live,
		client: &http.Client{Timeout: requestTimeout},
		dialer: websocket.DefaultDialer,
	}
}

// Pull fetches the shared configuration and applies it when it is newer than
// the local one. It reports whether the local configuration changed. A
// coordinator without a configuration yet is not an error.
func (s *Syncer) Pull(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return false, fmt.Errorf("configsync: build request: %w", err)
	}
	s.authorize(req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("configsync: get: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		return false, nil
	default:
		return false, fmt.Errorf("configsync: get: unexpected status %d", resp.StatusCode)
	}

	var update types.ConfigurationUpdate
	if err := json.NewDecoder(resp.Body).Decode(&update); err != nil {
		return false, fmt.Errorf("configsync: decode: %w", err)
	}
	return s.apply(update)
}

// Push submits the live configuration with its timestamp.
func (s *Syncer) Push(ctx context.Context) error {
	cfg := s.live.Current()
	ts := s.live.Timestamp()
	text, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	body, err := json.Marshal(types.ConfigurationUpdate{Timestamp: ts, Configuration: string(text)})
	if err != nil {
		return fmt.Errorf("configsync: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("configsync: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("configsync: put: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("configsync: put: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	slog.Debug("configsync: configuration pushed", "timestamp", ts)
	return nil
}

// Run polls the coordinator every interval until ctx is cancelled. Failed
// polls are retried with exponential backoff.
func (s *Syncer) Run(ctx context.Context) {
	bo := newBackoff()
	wait := time.Duration(0)

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if _, err := s.Pull(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = bo.next()
			slog.Warn("configsync: pull failed, will retry",
				"url", s.opts.URL, "err", err, "retry_in", wait)
			continue
		}
		bo.reset()
		wait = s.opts.Interval
	}
}

// Subscribe receives updates from the coordinator stream until ctx is
// cancelled, reconnecting with exponential backoff. It returns at once when
// no stream URL is configured.
func (s *Syncer) Subscribe(ctx context.Context) {
	if s.opts.StreamURL == "" {
		return
	}
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}
		err := s.stream(ctx, bo)
		if ctx.Err() != nil {
			return
		}
		wait := bo.next()
		slog.Warn("configsync: update stream lost, will reconnect",
			"url", s.opts.StreamURL, "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Syncer) stream(ctx context.Context, bo *backoff) error {
	header := http.Header{}
	s.authorize(header)
	conn, _, err := s.dialer.DialContext(ctx, s.opts.StreamURL, header)
	if err != nil {
		return fmt.Errorf("configsync: dial stream: %w", err)
	}
	defer conn.Close()

	slog.Info("configsync: subscribed to updates", "url", s.opts.StreamURL)
	bo.reset()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var ev types.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		if ev.Event != types.EventConfiguration {
			continue
		}
		if _, err := s.apply(ev.Data); err != nil {
			slog.Error("configsync: rejected shared configuration", "err", err)
		}
	}
}

// apply parses update and hands it to the live configuration.
func (s *Syncer) apply(update types.ConfigurationUpdate) (bool, error) {
	if update.Timestamp <= s.live.Timestamp() {
		return false, nil
	}
	cfg, err := config.Parse([]byte(update.Configuration))
	if err != nil {
		return false, fmt.Errorf("configsync: shared configuration: %w", err)
	}
	if !s.live.ApplyShared(update.Timestamp, cfg) {
		return false, nil
	}
	slog.Info("configsync: applied shared configuration",
		"timestamp", update.Timestamp, "queries", len(cfg.Queries))
	if s.opts.OnApply != nil {
		s.opts.OnApply(cfg)
	}
	return true, nil
}

func (s *Syncer) authorize(h http.Header) {
	if s.opts.APIKey == "" {
		return
	}
	header := s.opts.Header
	if header == "" {
		header = "X-API-Key"
	}
	h.Set(header, s.opts.APIKey)
}
