package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// inlineExprRegex matches a single {{expr}} that is not a block tag.
var inlineExprRegex = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// blockOpenRegex matches the opening tag of a block helper:
// {{#each path}}, {{#if cond}}, {{#unless cond}}, {{#with path}}.
var blockOpenRegex = regexp.MustCompile(`^\{\{#(each|if|unless|with)\s+(.*)\}\}$`)

// blockNode is one parsed top-level unit: either literal text or a
// recognized block with a body (and, for #if, an optional else branch).
type blockNode struct {
	literal  string
	helper   string // "" for literal
	arg      string
	body     []blockNode
	elseBody []blockNode
}

// parseBlocks performs a parse-check pass: it must find a well-formed,
// balanced set of block tags or return an error. It does not evaluate
// anything — used by Check at service-load time.
func parseBlocks(tmpl string) ([]blockNode, error) {
	nodes, rest, err := parseBlockSeq(tmpl, "")
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("unexpected trailing content after block close: %q", truncate(rest, 40))
	}
	return nodes, nil
}

// parseBlockSeq parses a sequence of nodes until it hits the closing tag
// for `closing` (or end of input if closing is ""). It returns the parsed
// nodes and whatever remains unconsumed after the close tag is stripped.
func parseBlockSeq(tmpl, closing string) ([]blockNode, string, error) {
	var nodes []blockNode
	rest := tmpl

	for {
		openIdx := strings.Index(rest, "{{#")
		closeTagIdx, closeTagLen := findCloseTag(rest, closing)
		elseIdx := -1
		if closing == "if" {
			elseIdx = strings.Index(rest, "{{else}}")
		}

		// Determine which comes first: a nested open, an else (only for if),
		// our own close tag, or nothing (end of input).
		next := -1
		kind := ""
		for _, cand := range []struct {
			idx  int
			kind string
		}{{openIdx, "open"}, {elseIdx, "else"}, {closeTagIdx, "close"}} {
			if cand.idx < 0 {
				continue
			}
			if next < 0 || cand.idx < next {
				next = cand.idx
				kind = cand.kind
			}
		}

		if next < 0 {
			if closing != "" {
				return nil, "", fmt.Errorf("unclosed {{#%s}} block", closing)
			}
			nodes = append(nodes, literalNode(rest))
			return nodes, "", nil
		}

		if next > 0 {
			nodes = append(nodes, literalNode(rest[:next]))
		}

		switch kind {
		case "open":
			endTag := strings.Index(rest[next:], "}}")
			if endTag < 0 {
				return nil, "", fmt.Errorf("unterminated block tag")
			}
			tag := rest[next : next+endTag+2]
			m := blockOpenRegex.FindStringSubmatch(tag)
			if m == nil {
				return nil, "", fmt.Errorf("malformed block tag: %q", tag)
			}
			helper, arg := m[1], strings.TrimSpace(m[2])
			afterOpen := rest[next+endTag+2:]

			body, afterBody, err := parseBlockSeq(afterOpen, helper)
			if err != nil {
				return nil, "", err
			}

			node := blockNode{helper: helper, arg: arg, body: body}

			if helper == "if" {
				// parseBlockSeq stopped either at {{else}} or {{/if}}; if it
				// stopped at else, parse the else branch and continue to /if.
				if strings.HasPrefix(afterBody, "__ELSE__") {
					afterBody = strings.TrimPrefix(afterBody, "__ELSE__")
					elseBody, afterElse, err := parseBlockSeq(afterBody, "if")
					if err != nil {
						return nil, "", err
					}
					node.elseBody = elseBody
					afterBody = afterElse
				}
			}

			nodes = append(nodes, node)
			rest = afterBody

		case "else":
			closeAt := next + len("{{else}}")
			return nodes, "__ELSE__" + rest[closeAt:], nil

		case "close":
			return nodes, rest[next+closeTagLen:], nil
		}
	}
}

func literalNode(s string) blockNode { return blockNode{literal: s} }

func findCloseTag(s, helper string) (int, int) {
	if helper == "" {
		return -1, 0
	}
	tag := "{{/" + helper + "}}"
	idx := strings.Index(s, tag)
	if idx < 0 {
		return -1, 0
	}
	return idx, len(tag)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// expandBlocks parses tmpl into a node tree and renders it against ctx.
// Literal text is substituted with the context in scope at that point, so
// inline {{expr}} inside an #each or #with body sees the loop/with item.
func (e *Engine) expandBlocks(tmpl string, ctx *Context) (string, error) {
	nodes, err := parseBlocks(tmpl)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	e.renderNodes(nodes, ctx, &sb)
	return sb.String(), nil
}

func (e *Engine) renderNodes(nodes []blockNode, ctx *Context, sb *strings.Builder) {
	for _, n := range nodes {
		if n.helper == "" {
			sb.WriteString(e.substitute(n.literal, ctx))
			continue
		}
		switch n.helper {
		case "each":
			v, _ := ctx.lookup(n.arg)
			items, _ := v.([]any)
			for i, item := range items {
				child := *ctx
				child.Runtime = ctx.Runtime
				itemCtx := &child
				itemCtx.Params = mergeParam(ctx.Params, "this", toString(item), "index", fmt.Sprintf("%d", i))
				itemCtx.Fixtures = mapWithItem(ctx.Fixtures, item)
				e.renderNodes(n.body, itemCtx, sb)
			}
		case "if":
			v, _ := ctx.lookup(n.arg)
			if truthy(v) {
				e.renderNodes(n.body, ctx, sb)
			} else {
				e.renderNodes(n.elseBody, ctx, sb)
			}
		case "unless":
			v, _ := ctx.lookup(n.arg)
			if !truthy(v) {
				e.renderNodes(n.body, ctx, sb)
			}
		case "with":
			v, ok := ctx.lookup(n.arg)
			if !ok {
				continue
			}
			child := *ctx
			child.Fixtures = mapWithItem(ctx.Fixtures, v)
			e.renderNodes(n.body, &child, sb)
		}
	}
}

// mergeParam returns a shallow copy of params with the given key/value
// pairs added, used for {{#each}} loop variables (this, index).
func mergeParam(params map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(params)+len(kv)/2)
	for k, v := range params {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

// mapWithItem exposes the current loop/with item under the "item" key
// alongside the outer fixtures, so {{fixtures.item.field}} resolves inside
// an #each or #with body.
func mapWithItem(outer map[string]any, item any) map[string]any {
	out := make(map[string]any, len(outer)+1)
	for k, v := range outer {
		out[k] = v
	}
	out["item"] = item
	return out
}

// replaceExpressions substitutes every {{expr}} (single-brace-pair, no
// leading #, /, or else keyword) using fn.
func replaceExpressions(s string, fn func(string) string) string {
	return inlineExprRegex.ReplaceAllStringFunc(s, func(match string) string {
		inner := strings.TrimSpace(match[2 : len(match)-2])
		if strings.HasPrefix(inner, "#") || strings.HasPrefix(inner, "/") || inner == "else" {
			return match
		}
		return fn(inner)
	})
}

func jsonMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
