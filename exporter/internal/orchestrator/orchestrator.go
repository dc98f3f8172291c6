package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/restexporter/restexporter/exporter/internal/config"
	"github.com/restexporter/restexporter/exporter/internal/router"
	"github.com/restexporter/restexporter/exporter/internal/scraper"
	"github.com/restexporter/restexporter/exporter/internal/selector"
	"github.com/restexporter/restexporter/exporter/internal/session"
	"github.com/restexporter/restexporter/exporter/internal/transport"
)

// DomainLabel is the label carrying the domain name when the domain
// qualifier is enabled.
const DomainLabel = "domain"

// Request describes one incoming scrape.
type Request struct {
	// Credential is the caller's Authorization header, forwarded verbatim.
	Credential string
}

// Report is the outcome of a scrape that reached the backend.
type Report struct {
	Samples []scraper.Sample

	// Comments describe queries that failed without failing the scrape.
	Comments []string
}

// ExhaustedError is returned when every candidate port was unreachable.
type ExhaustedError struct {
	Host  string
	Ports []int
	Err   error
}

func (e *ExhaustedError) Error() string {
	ports := make([]string, len(e.Ports))
	for i, p := range e.Ports {
		ports[i] = fmt.Sprint(p)
	}
	return fmt.Sprintf("Unable to reach the REST management API on host %s at port(s) %s. "+
		"You may need to set restPort or restHostName in the exporter configuration.",
		e.Host, strings.Join(ports, ", "))
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Orchestrator ties the live configuration, the session cache and the port
// router to a transport. It is safe for concurrent use; each Scrape gets its
// own router and client.
type Orchestrator struct {
	live      *config.Live
	sessions  *session.Cache
	successes *router.SuccessSet
	ledger    *RetryLedger
	factory   transport.Factory
}

// New returns an Orchestrator.
func New(live *config.Live, sessions *session.Cache, successes *router.SuccessSet,
	ledger *RetryLedger, factory transport.Factory) *Orchestrator {
	return &Orchestrator{
		live:      live,
		sessions:  sessions,
		successes: successes,
		ledger:    ledger,
		factory:   factory,
	}
}

// Ledger returns the retry ledger.
func (o *Orchestrator) Ledger() *RetryLedger { return o.ledger }

// Reset forgets cached sessions and successful ports.
func (o *Orchestrator) Reset() {
	o.sessions.Clear()
	o.successes.Clear()
}

// Scrape runs every configured query against the backend. Connectivity
// failures move on to the next candidate port; when none is left an
// *ExhaustedError is returned. Any other *transport.Error except
// KindRestQuery ends the scrape and is returned as is; a KindRestQuery
// failure becomes a comment in the Report.
func (o *Orchestrator) Scrape(ctx context.Context, req Request) (*Report, error) {
	cfg := o.live.Current()
	rt := router.New(cfg.Protocol, cfg.RestHost(), router.Candidates(cfg.RestPort, cfg.Port), o.successes)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report, err := o.attempt(ctx, cfg, rt, req)
		if err == nil {
			rt.ReportSuccess()
			return report, nil
		}
		if transport.KindOf(err) != transport.KindConnectivity {
			return nil, err
		}
		if fatal := rt.ReportFailure(err); fatal != nil {
			return nil, &ExhaustedError{Host: rt.Host(), Ports: rt.Tried(), Err: fatal}
		}
		o.ledger.Record()
		slog.Warn("orchestrator: port unreachable, retrying",
			"host", rt.Host(), "remaining", rt.Remaining(), "err", err)
	}
}

// attempt runs the queries once against the router's current port. The
// client is closed whatever the outcome.
func (o *Orchestrator) attempt(ctx context.Context, cfg *config.Config, rt *router.Router, req Request) (*Report, error) {
	client, err := o.factory.NewClient(transport.Options{
		Credential:         req.Credential,
		Jar:                o.sessions.Jar(req.Credential),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build client: %w", err)
	}
	defer client.Close()

	opts := scraper.Options{SnakeCase: cfg.MetricsNameSnakeCase}
	if cfg.DomainQualifier {
		name, err := o.domainName(ctx, client, rt)
		if err != nil {
			return nil, err
		}
		if name != "" {
			opts.Labels = []scraper.Label{{Name: DomainLabel, Value: name}}
		}
	}

	report := &Report{}
	for _, q := range cfg.Queries {
		wrapped := selector.Wrap(q)
		reply, err := o.post(ctx, client, rt, wrapped)
		if transport.KindOf(err) == transport.KindRestQuery {
			report.Comments = append(report.Comments, queryFailure(q.Name, err))
			continue
		}
		if err != nil {
			return nil, err
		}
		res, err := scraper.Scrape(wrapped, reply, opts)
		if err != nil {
			report.Comments = append(report.Comments, queryFailure(q.Name, err))
			continue
		}
		q.Selector.QueryType().PostProcess(res.Map(), o.live)
		report.Samples = append(report.Samples, res.Numeric()...)
	}
	return report, nil
}

// domainName returns the cached domain name, running the bootstrap query
// when it is not known yet. A rejected bootstrap query yields "".
func (o *Orchestrator) domainName(ctx context.Context, client transport.Client, rt *router.Router) (string, error) {
	if name := o.live.DomainName(); name != "" {
		return name, nil
	}
	q := selector.DomainNameQuery()
	reply, err := o.post(ctx, client, rt, q)
	if transport.KindOf(err) == transport.KindRestQuery {
		slog.Warn("orchestrator: domain name query rejected", "err", err)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	res, err := scraper.Scrape(q, reply, scraper.Options{})
	if err != nil {
		slog.Warn("orchestrator: domain name reply unreadable", "err", err)
		return "", nil
	}
	q.QueryType().PostProcess(res.Map(), o.live)
	return o.live.DomainName(), nil
}

func (o *Orchestrator) post(ctx context.Context, client transport.Client, rt *router.Router, sel *selector.Selector) ([]byte, error) {
	body, err := json.Marshal(sel.ToQuerySpec())
	if err != nil {
		return nil, fmt.Errorf("orchestrator: encode query: %w", err)
	}
	return client.Post(ctx, rt.URL(sel.QueryType().URLPattern()), body)
}

func queryFailure(name string, err error) string {
	return fmt.Sprintf("Query %s failed: %v", name, err)
}
