package template

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Engine renders response body templates (§4.3). It is safe for concurrent
// use; its only state is the sequence counters, which guard themselves with
// their own mutex. Bucket state lives outside it.
type Engine struct {
	Sequences *SequenceStore
}

// New creates a template engine with its own sequence counters.
func New() *Engine {
	return &Engine{Sequences: NewSequenceStore()}
}

// Process expands block helpers ({{#each}}, {{#if}}, {{#unless}},
// {{#with}}) and the inline {{expr}} substitutions within them in one pass,
// returning the rendered string. Unknown expressions render as empty string
// so a bad template degrades gracefully rather than panicking mid-response.
func (e *Engine) Process(tmpl string, ctx *Context) (string, error) {
	return e.expandBlocks(tmpl, ctx)
}

// Check parse-checks a template without evaluating it against a real
// request: block tags must balance. Inline {{expr}} expressions are not
// checked. Used by validation (§4.1) so a malformed block structure is
// caught at load time, not on the first matching request.
func Check(tmpl string) error {
	_, err := parseBlocks(tmpl)
	return err
}

// substitute replaces every remaining {{expr}} (no leading #, /, or else)
// with its evaluated value.
func (e *Engine) substitute(s string, ctx *Context) string {
	return replaceExpressions(s, func(expr string) string {
		return e.evaluate(expr, ctx)
	})
}

func (e *Engine) evaluate(expr string, ctx *Context) string {
	expr = strings.TrimSpace(expr)

	switch expr {
	case "now":
		if ctx != nil {
			return ctx.Now.Format(time.RFC3339)
		}
		return time.Now().UTC().Format(time.RFC3339)
	case "uuid":
		return uuid.New().String()
	case "timestamp":
		if ctx != nil {
			return strconv.FormatInt(ctx.Now.Unix(), 10)
		}
		return strconv.FormatInt(time.Now().Unix(), 10)
	}

	if strings.HasPrefix(expr, "faker.") {
		return fakeValue(expr[len("faker."):], ctx)
	}

	if result, handled := e.evaluateCall(expr, ctx); handled {
		return result
	}

	if v, ok := ctx.lookup(expr); ok {
		return toString(v)
	}
	return ""
}

// evaluateCall handles space-separated function forms: sequence(name),
// random.int min max, bucket.get path, json value.
func (e *Engine) evaluateCall(expr string, ctx *Context) (string, bool) {
	fields := strings.Fields(expr)
	if len(fields) == 0 {
		return "", false
	}

	switch fields[0] {
	case "sequence":
		name := strings.Trim(strings.Join(fields[1:], " "), `"'()`)
		return strconv.FormatInt(e.Sequences.Next(name, 0), 10), true
	case "random.int":
		if len(fields) != 3 {
			return "", true
		}
		lo, err1 := strconv.Atoi(fields[1])
		hi, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || hi < lo {
			return "", true
		}
		return strconv.Itoa(randInt(lo, hi)), true
	case "json":
		if len(fields) != 2 {
			return "", true
		}
		v, _ := ctx.lookup(fields[1])
		return toJSON(v), true
	case "bucket.get":
		if len(fields) != 2 || ctx == nil || ctx.Bucket == nil {
			return "", true
		}
		v, _ := ctx.Bucket.Get(strings.Trim(fields[1], `"`))
		return toString(v), true
	case "eq":
		if len(fields) != 3 {
			return "", true
		}
		return strconv.FormatBool(resolveArg(fields[1], ctx) == resolveArg(fields[2], ctx)), true
	case "not":
		if len(fields) < 2 {
			return "", true
		}
		inner := strings.Join(fields[1:], " ")
		if result, handled := e.evaluateCall(inner, ctx); handled {
			b, _ := strconv.ParseBool(result)
			return strconv.FormatBool(!b), true
		}
		v, _ := ctx.lookup(inner)
		return strconv.FormatBool(!truthy(v)), true
	case "random":
		// random a, b, c picks one of the comma-separated literals uniformly.
		if len(fields) < 2 {
			return "", true
		}
		joined := strings.Join(fields[1:], " ")
		parts := strings.Split(joined, ",")
		choices := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.Trim(strings.TrimSpace(p), `"'`)
			if p != "" {
				choices = append(choices, p)
			}
		}
		if len(choices) == 0 {
			return "", true
		}
		return choices[randInt(0, len(choices)-1)], true
	}

	return "", false
}

func resolveArg(tok string, ctx *Context) string {
	tok = strings.TrimSpace(tok)
	if len(tok) >= 2 && (tok[0] == '"' && tok[len(tok)-1] == '"' || tok[0] == '\'' && tok[len(tok)-1] == '\'') {
		return tok[1 : len(tok)-1]
	}
	if v, ok := ctx.lookup(tok); ok {
		return toString(v)
	}
	return tok
}

func randInt(lo, hi int) int {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	n := int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	if n < 0 {
		n = -n
	}
	span := hi - lo + 1
	if span <= 0 {
		return lo
	}
	return lo + n%span
}

func toJSON(v any) string {
	data, err := jsonMarshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// ProcessInterface recursively renders every string leaf of a nested
// map/slice structure. Used when a response body is assembled from YAML
// structures rather than a flat string template.
func (e *Engine) ProcessInterface(data any, ctx *Context) any {
	switch v := data.(type) {
	case string:
		out, _ := e.Process(v, ctx)
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = e.ProcessInterface(val, ctx)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = e.ProcessInterface(val, ctx)
		}
		return out
	default:
		return data
	}
}

