package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/restexporter/restexporter/coordinator/internal/store"
	"github.com/restexporter/restexporter/pkg/types"
)

const maxBody = 1 << 20

// Broadcaster fans accepted updates out to subscribers.
type Broadcaster interface {
	Broadcast(u types.ConfigurationUpdate)
	Count() int
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status           string `json:"status"`
	HasConfiguration bool   `json:"has_configuration"`
	Timestamp        int64  `json:"timestamp,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
	Subscribers      int    `json:"subscribers"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store *store.Store
	hub   Broadcaster
	mux   *http.ServeMux
}

// New returns a Handler over st that announces accepted updates on hub.
func New(st *store.Store, hub Broadcaster) http.Handler {
	h := &Handler{store: st, hub: hub, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/configuration", h.configuration)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := HealthResponse{Status: "ok", Subscribers: h.hub.Count()}
	if e, ok := h.store.Get(); ok {
		resp.HasConfiguration = true
		resp.Timestamp = e.Update.Timestamp
		resp.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) configuration(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		e, ok := h.store.Get()
		if !ok {
			jsonErr(w, http.StatusNotFound, "no configuration shared yet")
			return
		}
		jsonResp(w, http.StatusOK, e.Update)

	case http.MethodPut:
		var u types.ConfigurationUpdate
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&u); err != nil {
			jsonErr(w, http.StatusBadRequest, "decode body: "+err.Error())
			return
		}
		if err := validate(u); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.store.Put(u); err != nil {
			if errors.Is(err, store.ErrStale) {
				jsonErr(w, http.StatusConflict, err.Error())
				return
			}
			jsonErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		slog.Info("api: configuration accepted", "timestamp", u.Timestamp, "remote", r.RemoteAddr)
		h.hub.Broadcast(u)
		jsonResp(w, http.StatusOK, u)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// validate checks that u carries a timestamp and a YAML mapping.
func validate(u types.ConfigurationUpdate) error {
	if u.Timestamp <= 0 {
		return errors.New("timestamp must be positive")
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(u.Configuration), &doc); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return errors.New("configuration: expected a YAML mapping")
	}
	return nil
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
