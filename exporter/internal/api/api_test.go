package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/restexporter/restexporter/exporter/internal/api"
	"github.com/restexporter/restexporter/exporter/internal/config"
	"github.com/restexporter/restexporter/exporter/internal/orchestrator"
	"github.com/restexporter/restexporter/exporter/internal/scraper"
	"github.com/restexporter/restexporter/exporter/internal/telemetry"
	"github.com/restexporter/restexporter/exporter/internal/transport"
)

// --- test helpers -----------------------------------------------------------

type fakeScraper struct {
	report     *orchestrator.Report
	err        error
	credential string
	resets     int
}

func (f *fakeScraper) Scrape(_ context.Context, req orchestrator.Request) (*orchestrator.Report, error) {
	f.credential = req.Credential
	return f.report, f.err
}

func (f *fakeScraper) Reset() { f.resets++ }

type fakePusher struct{ pushes int }

func (f *fakePusher) Push(context.Context) error {
	f.pushes++
	return nil
}

const baseConfig = `
host: myhost
queries:
  - groups:
      key: name
      values: [testSample1]
`

func newHandler(t *testing.T, scr *fakeScraper, pusher api.Pusher) (http.Handler, *config.Live) {
	t.Helper()
	cfg, err := config.Parse([]byte(baseConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	live := config.NewLive(cfg)
	return api.New(live, scr, telemetry.New(func() int { return 0 }), pusher), live
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics_Success(t *testing.T) {
	scr := &fakeScraper{report: &orchestrator.Report{
		Samples: []scraper.Sample{{
			Name:   "groupValue_testSample1",
			Labels: []scraper.Label{{Name: "name", Value: "first"}},
			Value:  12,
		}},
		Comments: []string{"Query broken failed: status 400"},
	}}
	h, _ := newHandler(t, scr, nil)

	rr := do(t, h, http.MethodGet, "/metrics", "", map[string]string{"Authorization": "Basic abc"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `groupValue_testSample1{name="first"} 12`) {
		t.Errorf("metric line missing:\n%s", body)
	}
	if !strings.Contains(body, "# Query broken failed: status 400") {
		t.Errorf("comment missing:\n%s", body)
	}
	if scr.credential != "Basic abc" {
		t.Errorf("credential: got %q", scr.credential)
	}
}

func TestMetrics_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantHeader string
		wantBody   string
	}{
		{
			name:       "auth challenge",
			err:        &transport.Error{Kind: transport.KindAuthChallenge, Status: 401, Realm: `Basic realm="WebLogic Server"`},
			wantCode:   http.StatusUnauthorized,
			wantHeader: `Basic realm="WebLogic Server"`,
		},
		{
			name:     "forbidden",
			err:      &transport.Error{Kind: transport.KindForbidden, Status: 403},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "server error",
			err:      &transport.Error{Kind: transport.KindServerError, Status: 503, Body: "overloaded"},
			wantCode: http.StatusInternalServerError,
			wantBody: "# overloaded",
		},
		{
			name:     "ports exhausted",
			err:      &orchestrator.ExhaustedError{Host: "myhost", Ports: []int{7651, 7654}, Err: errors.New("refused")},
			wantCode: http.StatusOK,
			wantBody: "restPort",
		},
		{
			name:     "unexpected",
			err:      errors.New("boom"),
			wantCode: http.StatusOK,
			wantBody: "# Unable to scrape the management server: boom",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newHandler(t, &fakeScraper{err: tc.err}, nil)
			rr := do(t, h, http.MethodGet, "/metrics", "", nil)
			if rr.Code != tc.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tc.wantCode)
			}
			if tc.wantHeader != "" && rr.Header().Get("WWW-Authenticate") != tc.wantHeader {
				t.Errorf("WWW-Authenticate: got %q", rr.Header().Get("WWW-Authenticate"))
			}
			if tc.wantBody != "" && !strings.Contains(rr.Body.String(), tc.wantBody) {
				t.Errorf("body missing %q:\n%s", tc.wantBody, rr.Body.String())
			}
		})
	}
}

func TestMetrics_MethodNotAllowed(t *testing.T) {
	h, _ := newHandler(t, &fakeScraper{}, nil)
	if rr := do(t, h, http.MethodPost, "/metrics", "", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d", rr.Code)
	}
}

// --- configuration ----------------------------------------------------------

func TestCurrentConfiguration(t *testing.T) {
	h, _ := newHandler(t, &fakeScraper{}, nil)
	rr := do(t, h, http.MethodGet, "/", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if _, err := config.Parse(rr.Body.Bytes()); err != nil {
		t.Errorf("served configuration does not parse: %v\n%s", err, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "- groups:") {
		t.Errorf("body missing query:\n%s", rr.Body.String())
	}
}

func TestConfiguration_Append(t *testing.T) {
	scr := &fakeScraper{}
	pusher := &fakePusher{}
	h, live := newHandler(t, scr, pusher)

	rr := do(t, h, http.MethodPut, "/configuration?action=append",
		"queries:\n  - people:\n      key: name\n      values: [age, sex]\n", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	var resp struct {
		Queries int `json:"queries"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Queries != 2 || len(live.Current().Queries) != 2 {
		t.Errorf("queries: got %d/%d, want 2", resp.Queries, len(live.Current().Queries))
	}
	if live.Current().Host != "myhost" {
		t.Errorf("append changed host to %q", live.Current().Host)
	}
	if scr.resets != 0 {
		t.Errorf("append reset sessions")
	}
	if pusher.pushes != 1 {
		t.Errorf("pushes: got %d, want 1", pusher.pushes)
	}
}

func TestConfiguration_Replace(t *testing.T) {
	scr := &fakeScraper{}
	h, live := newHandler(t, scr, nil)

	rr := do(t, h, http.MethodPost, "/configuration", "host: other\n", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	if live.Current().Host != "other" || len(live.Current().Queries) != 0 {
		t.Errorf("live: %+v", live.Current())
	}
	if scr.resets != 1 {
		t.Errorf("resets: got %d, want 1", scr.resets)
	}
}

func TestConfiguration_InvalidKeepsLive(t *testing.T) {
	h, live := newHandler(t, &fakeScraper{}, nil)
	before := live.Current()

	rr := do(t, h, http.MethodPut, "/configuration", "queries:\n  - q:\n      values: [a, a]\n", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "q.values") {
		t.Errorf("error does not name the field: %s", rr.Body.String())
	}
	if live.Current() != before {
		t.Errorf("live configuration changed")
	}
}

func TestConfiguration_UnknownAction(t *testing.T) {
	h, _ := newHandler(t, &fakeScraper{}, nil)
	if rr := do(t, h, http.MethodPut, "/configuration?action=merge", "", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", rr.Code)
	}
}

// --- self metrics -----------------------------------------------------------

func TestSelfMetrics(t *testing.T) {
	h, _ := newHandler(t, &fakeScraper{report: &orchestrator.Report{}}, nil)
	do(t, h, http.MethodGet, "/metrics", "", nil)

	rr := do(t, h, http.MethodGet, "/-/metrics", "", nil)
	if !strings.Contains(rr.Body.String(), `restexporter_scrapes_total{outcome="success"} 1`) {
		t.Errorf("self metrics missing scrape count:\n%s", rr.Body.String())
	}
}
