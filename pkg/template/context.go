package template

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ohler55/ojg/jp"
)

// BucketAccessor is the subset of pkg/bucket.Bucket the template engine
// needs. Defined here (rather than imported) to keep pkg/template free of a
// dependency on pkg/bucket — the engine only ever needs get/set.
type BucketAccessor interface {
	Get(path string) (any, bool)
	Set(path string, value any)
}

// RequestContext carries the inbound HTTP request data available to
// templates under the request.* namespace.
type RequestContext struct {
	Method     string
	Path       string
	URL        string
	Body       any
	RawBody    string
	Query      map[string][]string
	Headers    map[string][]string
	PathParams map[string]string
}

// Context holds everything a template expression may reference: the
// matched request, fixtures declared on the service, the mutable bucket,
// runtime values injected by a script hook, environment variables, and the
// render timestamp (§4.3).
type Context struct {
	Request   RequestContext
	Params    map[string]string
	Fixtures  map[string]any
	Bucket    BucketAccessor
	Runtime   map[string]any
	Env       map[string]string
	Now       time.Time
	RequestID string
}

// NewContext builds a Context from an inbound HTTP request. The body comes
// from bodyBytes (see ReadBody); r.Body itself is not read.
func NewContext(r *http.Request, bodyBytes []byte, fixtures map[string]any, bucket BucketAccessor) *Context {
	ctx := &Context{
		Request: RequestContext{
			Method:     r.Method,
			Path:       r.URL.Path,
			URL:        r.URL.String(),
			RawBody:    string(bodyBytes),
			Query:      r.URL.Query(),
			Headers:    r.Header,
			PathParams: make(map[string]string),
		},
		Params:   make(map[string]string),
		Fixtures: fixtures,
		Bucket:   bucket,
		Runtime:  make(map[string]any),
		Env:      make(map[string]string),
		Now:      time.Now().UTC(),
	}

	ct := r.Header.Get("Content-Type")
	if len(bodyBytes) > 0 && (ct == "application/json" || ct == "") {
		var body any
		if err := json.Unmarshal(bodyBytes, &body); err == nil {
			ctx.Request.Body = body
		}
	}

	return ctx
}

// ReadBody reads and returns the full request body, leaving r.Body closed.
// A body larger than 10 MiB is an error.
func ReadBody(r *http.Request) ([]byte, error) {
	const maxBody = 10 << 20
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	if len(b) > maxBody {
		return nil, errors.New("request body exceeds 10 MiB")
	}
	return b, nil
}

// WithPathParams attaches matched path parameters to the context and
// mirrors them into Params for {{params.x}} lookups.
func (c *Context) WithPathParams(params map[string]string) *Context {
	c.Request.PathParams = params
	for k, v := range params {
		c.Params[k] = v
	}
	return c
}

// MergeRuntime merges a script hook's returned values into Runtime (§4.4).
// Later keys overwrite earlier ones.
func (c *Context) MergeRuntime(values map[string]any) {
	if c.Runtime == nil {
		c.Runtime = make(map[string]any)
	}
	for k, v := range values {
		c.Runtime[k] = v
	}
}

// lookup resolves a dotted path against the context namespaces:
// request.*, params.*, fixtures.*, bucket.*, runtime.*, env.*, plus the
// bare identifier now. Returns (value, found).
func (c *Context) lookup(path string) (any, bool) {
	if c == nil || path == "" {
		return nil, false
	}
	segs := splitDotted(path)
	switch segs[0] {
	case "now":
		return c.Now, true
	case "request":
		return lookupRequest(c, segs[1:])
	case "params":
		return lookupStringMap(c.Params, segs[1:])
	case "fixtures":
		return lookupAnyPath(c.Fixtures, segs[1:])
	case "runtime":
		return lookupAnyPath(c.Runtime, segs[1:])
	case "env":
		return lookupStringMap(c.Env, segs[1:])
	case "bucket":
		if c.Bucket == nil {
			return nil, false
		}
		return c.Bucket.Get(joinDotted(segs[1:]))
	}
	return nil, false
}

func lookupRequest(c *Context, segs []string) (any, bool) {
	if len(segs) == 0 {
		return nil, false
	}
	switch segs[0] {
	case "method":
		return c.Request.Method, true
	case "path":
		return c.Request.Path, true
	case "url":
		return c.Request.URL, true
	case "rawBody", "raw_body":
		return c.Request.RawBody, true
	case "body":
		if len(segs) == 1 {
			return c.Request.Body, true
		}
		return lookupAnyPath(c.Request.Body, segs[1:])
	case "query":
		if len(segs) == 2 {
			if vals, ok := c.Request.Query[segs[1]]; ok && len(vals) > 0 {
				return vals[0], true
			}
		}
		return nil, false
	case "header":
		if len(segs) == 2 {
			key := http.CanonicalHeaderKey(segs[1])
			if vals, ok := c.Request.Headers[key]; ok && len(vals) > 0 {
				return vals[0], true
			}
		}
		return nil, false
	case "pathParam", "path_param":
		if len(segs) == 2 {
			if v, ok := c.Request.PathParams[segs[1]]; ok {
				return v, true
			}
		}
		return nil, false
	}
	return nil, false
}

func lookupStringMap(m map[string]string, segs []string) (any, bool) {
	if len(segs) != 1 || m == nil {
		return nil, false
	}
	v, ok := m[segs[0]]
	return v, ok
}

// lookupAnyPath walks nested map[string]any / []any structures (as produced
// by encoding/json.Unmarshal into `any`) following dotted segments, with
// numeric segments indexing into arrays. Resolution goes through ojg's
// JSONPath evaluator (the same library the matcher uses for body_match
// predicates) rather than a hand-rolled walk, so both places agree on what
// "fixtures.items.0.id" means.
func lookupAnyPath(v any, segs []string) (any, bool) {
	if len(segs) == 0 {
		return v, true
	}
	expr, err := jp.ParseString("$." + joinDotted(segs))
	if err != nil {
		return nil, false
	}
	results := expr.Get(v)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}
