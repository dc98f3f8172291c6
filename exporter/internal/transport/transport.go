package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindConnectivity means the host or port could not be reached.
	KindConnectivity Kind = iota + 1
	// KindAuthChallenge is a 401 carrying a WWW-Authenticate realm.
	KindAuthChallenge
	// KindForbidden is a 403.
	KindForbidden
	// KindServerError is a 5xx or any other unexpected status.
	KindServerError
	// KindRestQuery is a 400 rejecting one query.
	KindRestQuery
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindAuthChallenge:
		return "auth_challenge"
	case KindForbidden:
		return "forbidden"
	case KindServerError:
		return "server_error"
	case KindRestQuery:
		return "rest_query"
	default:
		return "unknown"
	}
}

// Error is returned for every failed call.
type Error struct {
	Kind   Kind
	URL    string
	Status int

	// Realm is the verbatim WWW-Authenticate header of a KindAuthChallenge.
	Realm string

	// Body is the response body of a failed status, if any.
	Body string

	// Err is the underlying network error of a KindConnectivity.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConnectivity:
		return fmt.Sprintf("transport: %s: unreachable: %v", e.URL, e.Err)
	case KindAuthChallenge:
		return fmt.Sprintf("transport: %s: authentication required", e.URL)
	case KindForbidden:
		return fmt.Sprintf("transport: %s: forbidden", e.URL)
	default:
		if e.Body != "" {
			return fmt.Sprintf("transport: %s: status %d: %s", e.URL, e.Status, e.Body)
		}
		return fmt.Sprintf("transport: %s: status %d", e.URL, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or 0 when err is not a transport error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// Client posts JSON query bodies. Implementations are used by one scrape and
// are released with Close.
type Client interface {
	Post(ctx context.Context, url string, body []byte) ([]byte, error)
	Close() error
}

// Factory builds a Client for one scrape.
type Factory interface {
	NewClient(opts Options) (Client, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(opts Options) (Client, error)

// NewClient calls f(opts).
func (f FactoryFunc) NewClient(opts Options) (Client, error) { return f(opts) }

// Options configures a Client.
type Options struct {
	// Credential is forwarded verbatim as the Authorization header.
	Credential string

	// Jar supplies and receives session cookies. It may be nil.
	Jar http.CookieJar

	InsecureSkipVerify bool

	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
}

const (
	// DefaultTimeout bounds a single REST call.
	DefaultTimeout = 30 * time.Second

	// RequestedByHeader identifies the exporter on every outbound call.
	RequestedByHeader = "X-Requested-By"
	requestedByValue  = "restexporter"

	maxErrorBody = 4 << 10
)

// HTTP is the Factory producing net/http clients.
var HTTP Factory = FactoryFunc(NewHTTPClient)

type httpClient struct {
	client    *http.Client
	transport *http.Transport
}

// NewHTTPClient returns a Client backed by its own http.Transport.
func NewHTTPClient(opts Options) (Client, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errors.New("transport: default transport is not *http.Transport")
	}
	tr := base.Clone()
	tr.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &httpClient{
		transport: tr,
		client: &http.Client{
			Transport: &headerRoundTripper{base: tr, credential: opts.Credential},
			Jar:       opts.Jar,
			Timeout:   timeout,
		},
	}, nil
}

// headerRoundTripper sets the identifying header and forwards the caller's
// credential on every outgoing request.
type headerRoundTripper struct {
	base       http.RoundTripper
	credential string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(RequestedByHeader, requestedByValue)
	if t.credential != "" {
		req.Header.Set("Authorization", t.credential)
	}
	return t.base.RoundTrip(req)
}

func (c *httpClient) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isConnectivity(err) {
			return nil, &Error{Kind: KindConnectivity, URL: url, Err: err}
		}
		return nil, fmt.Errorf("transport: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("transport: read reply: %w", err)
		}
		return data, nil
	}
	return nil, statusError(url, resp)
}

func (c *httpClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// statusError maps a non-200 reply onto an Error.
func statusError(url string, resp *http.Response) *Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &Error{URL: url, Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		e.Kind = KindRestQuery
	case resp.StatusCode == http.StatusUnauthorized:
		e.Kind = KindAuthChallenge
		e.Realm = resp.Header.Get("WWW-Authenticate")
		e.Body = ""
	case resp.StatusCode == http.StatusForbidden:
		e.Kind = KindForbidden
		e.Body = ""
	default:
		e.Kind = KindServerError
	}
	return e
}

// isConnectivity reports whether err means the host or port was unreachable.
func isConnectivity(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
