// Package matcher scores declared endpoints against an inbound request
// (§4.2): path shape, header predicates, and body field predicates combine
// into a single score, with the highest-scoring declared endpoint winning
// and ties broken by declaration order.
package matcher

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/pmaojo/apicentric/pkg/spec"
)

// noMatch is the sentinel score for a failed match; any real match scores
// >= 0, so -1 lets callers use `score < 0` as the failure check.
const noMatch = -1

// Result is the outcome of matching one endpoint.
type Result struct {
	Endpoint   *spec.Endpoint
	Index      int
	Score      int
	PathParams map[string]string
}

// Match scores every endpoint in svc against r+body and returns the single
// best match, or (nil, false) if nothing matched. Ties are broken by the
// lowest declaration index (first-declared wins).
func Match(endpoints []*spec.Endpoint, basePath string, r *http.Request, body []byte) (*Result, bool) {
	path := strings.TrimPrefix(r.URL.Path, basePath)
	if path == "" {
		path = "/"
	}

	var best *Result
	for i, ep := range endpoints {
		score, params := scoreEndpoint(ep, path, r, body)
		if score < 0 {
			continue
		}
		if best == nil || score > best.Score {
			best = &Result{Endpoint: ep, Index: i, Score: score, PathParams: params}
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func scoreEndpoint(ep *spec.Endpoint, path string, r *http.Request, body []byte) (int, map[string]string) {
	if !strings.EqualFold(ep.Method, r.Method) {
		return noMatch, nil
	}

	pathScore, params, ok := matchPath(ep.Path, path)
	if !ok {
		return noMatch, nil
	}
	score := pathScore

	for name, want := range ep.HeaderMatch {
		got := r.Header.Get(name)
		if !matchPredicate(want, got) {
			return noMatch, nil
		}
		score++
	}

	for field, want := range ep.BodyMatch {
		got, ok := jsonPathField(body, field)
		if !ok {
			return noMatch, nil
		}
		wantStr, ok := want.(string)
		if ok {
			if !matchPredicate(wantStr, toComparable(got)) {
				return noMatch, nil
			}
		} else if toComparable(got) != toComparable(want) {
			return noMatch, nil
		}
		score++
	}

	return score, params
}

// matchPath classifies a declared path against the actual request path and
// returns (score, pathParams, matched). Score bands, highest first:
//
//	3  exact literal match
//	1  parametric match with any number (one or more) of path parameters
//	1  regex match (path prefixed with "^")
//
// The parametric score is 2-n floored at 1, so every parametric match
// scores 1: the number of parameters does not rank parametric patterns
// against each other or against regex patterns, and such ties fall back to
// declaration order.
func matchPath(pattern, path string) (int, map[string]string, bool) {
	if strings.HasPrefix(pattern, "^") {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return 0, nil, false
		}
		m := re.FindStringSubmatch(path)
		if m == nil {
			return 0, nil, false
		}
		params := make(map[string]string)
		for i, name := range re.SubexpNames() {
			if i > 0 && name != "" && i < len(m) {
				params[name] = m[i]
			}
		}
		return 1, params, true
	}

	if pattern == path {
		return 3, nil, true
	}

	if !strings.Contains(pattern, "{") {
		return 0, nil, false
	}

	patternSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSegs := strings.Split(strings.Trim(path, "/"), "/")
	if len(patternSegs) != len(pathSegs) {
		return 0, nil, false
	}

	params := make(map[string]string)
	numParams := 0
	for i, seg := range patternSegs {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := seg[1 : len(seg)-1]
			params[name] = pathSegs[i]
			numParams++
			continue
		}
		if seg != pathSegs[i] {
			return 0, nil, false
		}
	}

	score := 2 - numParams
	if score < 1 {
		score = 1
	}
	return score, params, true
}

// matchPredicate evaluates a declared predicate value: "^<regex>" is
// matched as a regular expression, anything else is compared literally.
func matchPredicate(want, got string) bool {
	if strings.HasPrefix(want, "^") {
		re, err := regexp.Compile(want)
		if err != nil {
			return false
		}
		return re.MatchString(got)
	}
	return want == got
}

// jsonPathField extracts a field from the parsed JSON body using a
// dot-path (translated to JSONPath) via ojg. Returns (nil, false) if the
// body isn't JSON or the field is absent.
func jsonPathField(body []byte, field string) (any, bool) {
	if len(body) == 0 {
		return nil, false
	}
	parsed, err := oj.Parse(body)
	if err != nil {
		return nil, false
	}
	expr, err := jp.ParseString("$." + field)
	if err != nil {
		return nil, false
	}
	results := expr.Get(parsed)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

func toComparable(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return ""
	}
}
