package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/restexporter/restexporter/exporter/internal/selector"
)

// Default values applied when fields are absent from the configuration.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 7001
	DefaultProtocol = "http"
)

// Config is one exporter configuration.
type Config struct {
	// Host is the management server host.
	Host string `yaml:"host"`

	// Port is the server port the exporter was configured with. It is the
	// fallback when RestPort cannot be reached.
	Port int `yaml:"port"`

	// RestPort is an optional dedicated port for REST management calls,
	// tried before Port.
	RestPort int `yaml:"restPort,omitempty"`

	// RestHostName overrides Host for REST management calls.
	RestHostName string `yaml:"restHostName,omitempty"`

	// Protocol is http or https.
	Protocol string `yaml:"protocol"`

	InsecureSkipVerify bool `yaml:"insecureSkipVerify,omitempty"`

	// MetricsNameSnakeCase converts metric and label names to snake_case.
	MetricsNameSnakeCase bool `yaml:"metricsNameSnakeCase,omitempty"`

	// DomainQualifier adds the domain name as the first label of every metric.
	DomainQualifier bool `yaml:"domainQualifier,omitempty"`

	// Queries are the runtime queries, in configuration order.
	Queries selector.Queries `yaml:"-"`
}

// RestHost returns the host REST calls are sent to.
func (c *Config) RestHost() string {
	if c.RestHostName != "" {
		return c.RestHostName
	}
	return c.Host
}

// Error is a configuration error. The live configuration is never changed by
// a configuration that failed with an Error.
type Error struct {
	// Field names the offending entry, if known.
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Err.Error()
	}
	return "config: " + e.Field + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// document is the YAML shape of a Config. The queries stay a raw node so the
// selector trees can be built in document order.
type document struct {
	Config    `yaml:",inline"`
	QueryList yaml.Node `yaml:"queries"`
}

// outDocument is the shape written by Marshal.
type outDocument struct {
	Config    `yaml:",inline"`
	QueryList *yaml.Node `yaml:"queries,omitempty"`
}

// Parse builds a Config from YAML text. Unknown top-level keys are rejected.
// Missing optional fields are filled with defaults.
func Parse(data []byte) (*Config, error) {
	doc := document{Config: *defaults()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Err: fmt.Errorf("parse yaml: %w", err)}
	}

	cfg := doc.Config
	queries, err := selector.BuildQueries(&doc.QueryList, selector.Runtime)
	if err != nil {
		var se *selector.Error
		if errors.As(err, &se) {
			return nil, &Error{Field: se.Field, Err: errors.New(se.Msg)}
		}
		return nil, &Error{Field: "queries", Err: err}
	}
	cfg.Queries = queries

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Marshal renders cfg as YAML that Parse accepts.
func Marshal(cfg *Config) ([]byte, error) {
	out := outDocument{Config: *cfg}
	if len(cfg.Queries) > 0 {
		out.QueryList = cfg.Queries.Node()
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return buf.Bytes(), nil
}

// Append returns a copy of cfg whose queries are cfg's queries with more's
// queries appended: same-named compatible queries merge, others are added
// after the existing ones. Only the queries of more are used.
func Append(cfg, more *Config) (*Config, error) {
	queries, err := cfg.Queries.Append(more.Queries)
	if err != nil {
		return nil, &Error{Field: "queries", Err: err}
	}
	next := *cfg
	next.Queries = queries
	return &next, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Protocol: DefaultProtocol,
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Host == "" {
		return &Error{Field: "host", Err: errors.New("is required")}
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return &Error{Field: "port", Err: fmt.Errorf("%d is out of range", cfg.Port)}
	}
	if cfg.RestPort < 0 || cfg.RestPort > 65535 {
		return &Error{Field: "restPort", Err: fmt.Errorf("%d is out of range", cfg.RestPort)}
	}
	switch cfg.Protocol {
	case "http", "https":
	default:
		return &Error{Field: "protocol", Err: fmt.Errorf("unknown protocol %q", cfg.Protocol)}
	}
	return nil
}
