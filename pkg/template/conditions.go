package template

import "strings"

// EvaluateCondition renders tmpl (a response's or scenario's condition
// string, §4.5) against ctx and reports whether the rendered result is
// truthy: non-empty and not literally "false" or "0". Conditions are
// ordinary templates, not a separate grammar, so {{not request.body.x}},
// {{eq request.query.tier "gold"}} and a bare dotted path all work the same
// way they do inside a response body.
func (e *Engine) EvaluateCondition(tmpl string, ctx *Context) (bool, error) {
	rendered, err := e.Process(tmpl, ctx)
	if err != nil {
		return false, err
	}
	rendered = strings.TrimSpace(rendered)
	return rendered != "" && rendered != "false" && rendered != "0", nil
}
