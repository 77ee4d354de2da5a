// Package spec defines the declarative service definition format (§3, §6)
// and the loader/validator that turns YAML files into typed Service values.
package spec

// Service is one declarative unit served on one port.
type Service struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Server Server `yaml:"server" json:"server"`

	Fixtures map[string]any `yaml:"fixtures,omitempty" json:"fixtures,omitempty"`
	Bucket   map[string]any `yaml:"bucket,omitempty" json:"bucket,omitempty"`

	Endpoints []*Endpoint `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`

	// GraphQL is accepted and round-tripped but ignored by the core — the
	// graphql capability, if present, interprets it. See spec.md §3.
	GraphQL map[string]any `yaml:"graphql,omitempty" json:"graphql,omitempty"`

	// SourcePath is where this service was loaded from. Not part of the
	// YAML schema; populated by the loader.
	SourcePath string `yaml:"-" json:"-"`
}

// Server holds the per-service listener configuration.
type Server struct {
	Port          int    `yaml:"port,omitempty" json:"port,omitempty"`
	BasePath      string `yaml:"base_path" json:"base_path"`
	ProxyBaseURL  string `yaml:"proxy_base_url,omitempty" json:"proxy_base_url,omitempty"`
	RecordUnknown bool   `yaml:"record_unknown,omitempty" json:"record_unknown,omitempty"`
	CORS          *CORS  `yaml:"cors,omitempty" json:"cors,omitempty"`
}

// CORS configures cross-origin handling for a service.
type CORS struct {
	Enabled bool     `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Origins []string `yaml:"origins,omitempty" json:"origins,omitempty"`
	Methods []string `yaml:"methods,omitempty" json:"methods,omitempty"`
	Headers []string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Endpoint is one (method + path pattern) pair within a service.
type Endpoint struct {
	Method      string `yaml:"method" json:"method"`
	Path        string `yaml:"path" json:"path"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	HeaderMatch map[string]string `yaml:"header_match,omitempty" json:"header_match,omitempty"`
	RequestBody *RequestBodyMatch `yaml:"request_body,omitempty" json:"request_body,omitempty"`
	BodyMatch   map[string]any    `yaml:"body_match,omitempty" json:"body_match,omitempty"`
	Parameters  []Parameter       `yaml:"parameters,omitempty" json:"parameters,omitempty"`

	// Responses maps status code -> ResponseSpec. Ordered iteration for
	// selection purposes uses sorted keys (see pkg/selector).
	Responses map[int]*ResponseSpec `yaml:"responses" json:"responses"`

	Scenarios []*Scenario `yaml:"scenarios,omitempty" json:"scenarios,omitempty"`
}

// RequestBodyMatch is advisory schema information about the request body.
// It is not evaluated; body field predicates live in Endpoint.BodyMatch.
type RequestBodyMatch struct {
	ContentType string         `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Schema      map[string]any `yaml:"schema,omitempty" json:"schema,omitempty"`
}

// Parameter documents a path/query/header parameter (advisory, for
// introspection and external tooling; not enforced by the matcher beyond
// what path patterns already imply).
type Parameter struct {
	Name     string `yaml:"name" json:"name"`
	In       string `yaml:"in" json:"in"` // path|query|header
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
}

// ResponseSpec configures one possible response for a matched endpoint.
// Status is required on scenario responses (they aren't keyed by status
// like Endpoint.Responses) and optional as an override within the map.
type ResponseSpec struct {
	Status      int               `yaml:"status,omitempty" json:"status,omitempty"`
	ContentType string            `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Body        string            `yaml:"body" json:"body"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Condition   string            `yaml:"condition,omitempty" json:"condition,omitempty"`
	Script      string            `yaml:"script,omitempty" json:"script,omitempty"`
	DelayMs     int               `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
}

// Scenario is a named conditional override or an anonymous rotation entry
// for an endpoint's response.
type Scenario struct {
	Strategy   string        `yaml:"strategy,omitempty" json:"strategy,omitempty"` // sequential|random, default sequential
	Name       string        `yaml:"name,omitempty" json:"name,omitempty"`
	Conditions string        `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Response   *ResponseSpec `yaml:"response" json:"response"`
}

// IsNamed reports whether this scenario is a named conditional override
// rather than an anonymous rotation entry.
func (s *Scenario) IsNamed() bool {
	return s.Name != "" || s.Conditions != ""
}

// Clone returns a deep-enough copy of the service suitable for the
// copy-on-write routing table swap (§5): endpoints are replaced wholesale
// on reload, never mutated in place.
func (s *Service) Clone() *Service {
	if s == nil {
		return nil
	}
	out := *s
	out.Endpoints = make([]*Endpoint, len(s.Endpoints))
	copy(out.Endpoints, s.Endpoints)
	return &out
}
