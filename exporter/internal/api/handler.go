package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/restexporter/restexporter/exporter/internal/config"
	"github.com/restexporter/restexporter/exporter/internal/exposition"
	"github.com/restexporter/restexporter/exporter/internal/orchestrator"
	"github.com/restexporter/restexporter/exporter/internal/telemetry"
	"github.com/restexporter/restexporter/exporter/internal/transport"
)

const (
	actionReplace = "replace"
	actionAppend  = "append"

	maxConfigBody = 1 << 20
	pushTimeout   = 10 * time.Second
)

// Scraper runs scrapes and drops cached session state.
type Scraper interface {
	Scrape(ctx context.Context, req orchestrator.Request) (*orchestrator.Report, error)
	Reset()
}

// Pusher publishes the live configuration to other instances.
type Pusher interface {
	Push(ctx context.Context) error
}

// Handler serves the exporter routes.
type Handler struct {
	live    *config.Live
	scraper Scraper
	metrics *telemetry.Metrics
	pusher  Pusher
	mux     *http.ServeMux
}

// New returns the exporter handler. pusher may be nil.
func New(live *config.Live, scr Scraper, metrics *telemetry.Metrics, pusher Pusher) http.Handler {
	h := &Handler{live: live, scraper: scr, metrics: metrics, pusher: pusher, mux: http.NewServeMux()}

	h.mux.HandleFunc("/metrics", h.scrape)
	h.mux.HandleFunc("/configuration", h.configuration)
	h.mux.Handle("/-/metrics", metrics.Handler())
	h.mux.HandleFunc("/", h.current)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// current returns GET /, the live configuration.
func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, err := config.Marshal(h.live.Current())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// configuration handles PUT|POST /configuration?action=replace|append.
func (h *Handler) configuration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	action := r.URL.Query().Get("action")
	if action == "" {
		action = actionReplace
	}
	if action != actionReplace && action != actionAppend {
		jsonErr(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q: want replace|append", action))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	cfg, err := config.Parse(body)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		ts      int64
		queries int
	)
	switch action {
	case actionReplace:
		ts = h.live.Replace(cfg)
		h.scraper.Reset()
		queries = len(cfg.Queries)
	case actionAppend:
		next, stamp, err := h.live.Append(cfg)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		ts, queries = stamp, len(next.Queries)
	}
	slog.Info("api: configuration changed", "action", action, "queries", queries, "timestamp", ts)

	h.push()
	jsonResp(w, http.StatusOK, configurationResponse{Action: action, Timestamp: ts, Queries: queries})
}

// push shares the new configuration; failures are logged only.
func (h *Handler) push() {
	if h.pusher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := h.pusher.Push(ctx); err != nil {
		slog.Warn("api: configuration push failed", "err", err)
	}
}

// scrape returns GET /metrics.
func (h *Handler) scrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start := time.Now()
	report, err := h.scraper.Scrape(r.Context(), orchestrator.Request{
		Credential: r.Header.Get("Authorization"),
	})
	outcome := h.writeScrape(w, report, err)

	failures := 0
	if report != nil {
		failures = len(report.Comments)
	}
	h.metrics.ObserveScrape(outcome, time.Since(start), failures)
}

// writeScrape writes the scrape response and returns the outcome label.
func (h *Handler) writeScrape(w http.ResponseWriter, report *orchestrator.Report, err error) string {
	w.Header().Set("Content-Type", exposition.ContentType)

	if err == nil {
		w.WriteHeader(http.StatusOK)
		if werr := exposition.Write(w, report.Samples, report.Comments); werr != nil {
			slog.Error("api: write metrics", "err", werr)
		}
		return telemetry.OutcomeSuccess
	}

	var (
		te        *transport.Error
		exhausted *orchestrator.ExhaustedError
	)
	switch {
	case errors.As(err, &exhausted):
		slog.Warn("api: management server unreachable", "host", exhausted.Host, "ports", exhausted.Ports)
		writeComments(w, http.StatusOK, exhausted.Error())
		return telemetry.OutcomeUnreachable

	case errors.As(err, &te) && te.Kind == transport.KindAuthChallenge:
		if te.Realm != "" {
			w.Header().Set("WWW-Authenticate", te.Realm)
		}
		writeComments(w, http.StatusUnauthorized, "Authentication required")
		return telemetry.OutcomeAuthFailure

	case errors.As(err, &te) && te.Kind == transport.KindForbidden:
		writeComments(w, http.StatusForbidden, "Not authorized")
		return telemetry.OutcomeForbidden

	case errors.As(err, &te) && te.Kind == transport.KindServerError:
		msg := fmt.Sprintf("REST API returned status %d", te.Status)
		if te.Body != "" {
			msg += "\n" + te.Body
		}
		writeComments(w, http.StatusInternalServerError, msg)
		return telemetry.OutcomeServerError

	default:
		slog.Error("api: scrape failed", "err", err)
		writeComments(w, http.StatusOK, "Unable to scrape the management server: "+err.Error())
		return telemetry.OutcomeInternal
	}
}

// --- helpers ----------------------------------------------------------------

func writeComments(w http.ResponseWriter, code int, comments ...string) {
	w.WriteHeader(code)
	exposition.WriteComments(w, comments) //nolint:errcheck
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
