// Package script runs the optional per-response JavaScript hook (§4.4) in a
// sandboxed goja VM with a hard time budget. A script receives the request
// and bucket, and returns a map merged into the template runtime namespace
// for one additional render pass.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dop251/goja"

	"github.com/pmaojo/apicentric/pkg/apierrors"
	"github.com/pmaojo/apicentric/pkg/template"
)

// Budget is the hard execution time limit for a script hook (§4.4).
const Budget = 250 * time.Millisecond

// LoadAndRun resolves relPath against baseDir (the owning service's source
// directory), reads the referenced JavaScript file, and runs it as a script
// hook. relPath is always a path to a file, never inline source (§4.4, §6).
func LoadAndRun(relPath, baseDir string, tctx *template.Context) (map[string]any, error) {
	path := relPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, relPath)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindFileReadError, path, err)
	}
	return Run(string(src), tctx)
}

// Run executes src against ctx's request/bucket/runtime data and returns the
// values the script wants merged into Runtime. A script that does not
// finish within Budget is interrupted and KindScriptTimeout is returned; a
// script that throws returns KindScriptFailure.
func Run(src string, tctx *template.Context) (map[string]any, error) {
	vm := goja.New()

	if err := setup(vm, tctx); err != nil {
		return nil, apierrors.Wrap(apierrors.KindScriptFailure, "", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), Budget)
	defer cancel()

	type outcome struct {
		values map[string]any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		v, err := vm.RunString(src)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{values: exportResult(vm, v)}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if exc, ok := o.err.(*goja.Exception); ok {
				return nil, apierrors.New(apierrors.KindScriptFailure, "", exc.String())
			}
			return nil, apierrors.Wrap(apierrors.KindScriptFailure, "", o.err)
		}
		return o.values, nil
	case <-ctx.Done():
		vm.Interrupt("script timeout")
		return nil, apierrors.New(apierrors.KindScriptTimeout, "",
			fmt.Sprintf("script did not complete within %s", Budget))
	}
}

func setup(vm *goja.Runtime, tctx *template.Context) error {
	requestObj := map[string]any{
		"method":  tctx.Request.Method,
		"path":    tctx.Request.Path,
		"body":    tctx.Request.Body,
		"rawBody": tctx.Request.RawBody,
		"headers": tctx.Request.Headers,
		"query":   tctx.Request.Query,
		"params":  tctx.Params,
	}
	if err := vm.Set("request", requestObj); err != nil {
		return err
	}

	bucketObj := map[string]any{
		"get": func(path string) any {
			if tctx.Bucket == nil {
				return nil
			}
			v, _ := tctx.Bucket.Get(path)
			return v
		},
		"set": func(path string, value any) {
			if tctx.Bucket != nil {
				tctx.Bucket.Set(path, value)
			}
		},
	}
	if err := vm.Set("bucket", bucketObj); err != nil {
		return err
	}

	if err := vm.Set("result", map[string]any{}); err != nil {
		return err
	}

	console := map[string]any{
		"log":   func(...any) {},
		"warn":  func(...any) {},
		"error": func(...any) {},
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	jsonUtil := map[string]any{
		"stringify": func(v any) string {
			b, err := json.Marshal(v)
			if err != nil {
				return ""
			}
			return string(b)
		},
		"parse": func(s string) any {
			var v any
			_ = json.Unmarshal([]byte(s), &v)
			return v
		},
	}
	return vm.Set("JSON", jsonUtil)
}

// exportResult prefers an explicit `result` object the script may have
// mutated; if the script's final expression evaluated to an object, that is
// used instead.
func exportResult(vm *goja.Runtime, lastExpr goja.Value) map[string]any {
	if lastExpr != nil && !goja.IsUndefined(lastExpr) && !goja.IsNull(lastExpr) {
		if m, ok := lastExpr.Export().(map[string]any); ok && len(m) > 0 {
			return m
		}
	}

	resultVal := vm.Get("result")
	if resultVal == nil || goja.IsUndefined(resultVal) || goja.IsNull(resultVal) {
		return nil
	}
	if m, ok := resultVal.Export().(map[string]any); ok {
		return m
	}
	return nil
}
