package simserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pmaojo/apicentric/pkg/apierrors"
	"github.com/pmaojo/apicentric/pkg/matcher"
	"github.com/pmaojo/apicentric/pkg/recording"
	"github.com/pmaojo/apicentric/pkg/requestlog"
	"github.com/pmaojo/apicentric/pkg/script"
	"github.com/pmaojo/apicentric/pkg/selector"
	"github.com/pmaojo/apicentric/pkg/template"
)

const maxBodyBytes = 10 << 20 // 10 MiB, §4.6 step 1

// handler implements the per-request pipeline (§4.6) for one service.
type handler struct {
	router   *router
	engine   *template.Engine
	rotators *selector.Rotators
	logs     *requestlog.Store
	recorder *recording.Recorder
	recMu    sync.Mutex
	log      *slog.Logger
}

func newHandler(r *router, logs *requestlog.Store, log *slog.Logger) *handler {
	return &handler{
		router:   r,
		engine:   template.New(),
		rotators: selector.NewRotators(),
		logs:     logs,
		recorder: recording.NewRecorder(),
		log:      log,
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rt := h.router.Load()
	svc := rt.service

	if applyCORS(w, r, svc.Server.CORS) {
		return
	}

	if r.ContentLength > maxBodyBytes {
		h.writeError(w, r, rt, start, http.StatusRequestEntityTooLarge, "body_too_large", nil)
		return
	}

	body, err := template.ReadBody(r)
	if err != nil {
		h.writeError(w, r, rt, start, http.StatusRequestEntityTooLarge, "body_too_large", nil)
		return
	}

	result, matched := matcher.Match(svc.Endpoints, svc.Server.BasePath, r, body)
	if !matched {
		h.handleNoMatch(w, r, rt, start, body)
		return
	}

	h.handleMatch(w, r, rt, start, body, result)
}

func (h *handler) handleMatch(w http.ResponseWriter, r *http.Request, rt *routingTable, start time.Time, body []byte, result *matcher.Result) {
	endpointIndex := result.Index
	ep := result.Endpoint

	reqCtx := template.NewContext(r, body, rt.service.Fixtures, rt.bucket)
	reqCtx.RequestID = uuid.New().String()
	reqCtx.WithPathParams(result.PathParams)

	sel, ok := selector.Select(ep, endpointIndex, reqCtx, h.rotators, h.engine)
	if !ok {
		h.writeError(w, r, rt, start, http.StatusInternalServerError, "no_response_configured", &endpointIndex)
		return
	}

	if sel.Response.DelayMs > 0 {
		time.Sleep(time.Duration(sel.Response.DelayMs) * time.Millisecond)
	}

	if sel.Response.Script != "" {
		baseDir := filepath.Dir(rt.service.SourcePath)
		values, err := script.LoadAndRun(sel.Response.Script, baseDir, reqCtx)
		if err != nil {
			h.log.Warn("script hook failed", "error", err, "path", ep.Path)
			code := string(apierrors.KindScriptFailure)
			if apierrors.Is(err, apierrors.KindScriptTimeout) {
				code = string(apierrors.KindScriptTimeout)
			}
			h.writeError(w, r, rt, start, http.StatusInternalServerError, code, &endpointIndex)
			return
		}
		reqCtx.MergeRuntime(values)
	}

	rendered, err := h.engine.Process(sel.Response.Body, reqCtx)
	if err != nil {
		h.writeError(w, r, rt, start, http.StatusInternalServerError, "template_error", &endpointIndex)
		return
	}

	status := sel.Status
	if status == 0 {
		status = http.StatusOK
	}

	for k, v := range sel.Response.Headers {
		w.Header().Set(k, v)
	}
	if sel.Response.ContentType != "" && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", sel.Response.ContentType)
	} else if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(rendered))

	h.appendLog(&requestlog.Entry{
		Service:        rt.service.Name,
		At:             start,
		Method:         r.Method,
		Path:           r.URL.Path,
		EndpointIndex:  endpointIndex,
		Status:         status,
		DurationMs:     time.Since(start).Milliseconds(),
		RequestHeaders: r.Header,
		RequestQuery:   r.URL.RawQuery,
		RequestBody:    requestlog.Snippet(string(body)),
		ResponseBody:   requestlog.Snippet(rendered),
		Source:         requestlog.SourceNormal,
	})
}

func (h *handler) handleNoMatch(w http.ResponseWriter, r *http.Request, rt *routingTable, start time.Time, body []byte) {
	srv := rt.service.Server

	if srv.RecordUnknown && srv.ProxyBaseURL != "" {
		h.handleRecordAndProxy(w, r, rt, start, body)
		return
	}
	if srv.ProxyBaseURL != "" {
		h.handleTransparentProxy(w, r, rt, start, body)
		return
	}

	h.writeError(w, r, rt, start, http.StatusNotFound, "no_match", nil)
}

// handleTransparentProxy runs when proxy_base_url is set without
// record_unknown: the response is forwarded but no endpoint is appended, so
// the log entry's source stays "normal" rather than "recorded-proxy".
func (h *handler) handleTransparentProxy(w http.ResponseWriter, r *http.Request, rt *routingTable, start time.Time, body []byte) {
	resp, respBody, err := h.recorder.Forward(r.Context(), rt.service.Server.ProxyBaseURL, r, body)
	if err != nil {
		h.writeProxyError(w, r, rt, start, err)
		return
	}
	copyResponse(w, resp, respBody)
	h.appendLog(&requestlog.Entry{
		Service:      rt.service.Name,
		At:           start,
		Method:       r.Method,
		Path:         r.URL.Path,
		Status:       resp.StatusCode,
		DurationMs:   time.Since(start).Milliseconds(),
		RequestBody:  requestlog.Snippet(string(body)),
		ResponseBody: requestlog.Snippet(string(respBody)),
		Source:       requestlog.SourceNormal,
	})
}

func (h *handler) handleRecordAndProxy(w http.ResponseWriter, r *http.Request, rt *routingTable, start time.Time, body []byte) {
	resp, respBody, err := h.recorder.Forward(r.Context(), rt.service.Server.ProxyBaseURL, r, body)
	if err != nil {
		h.writeProxyError(w, r, rt, start, err)
		return
	}
	copyResponse(w, resp, respBody)

	relPath := stripBasePath(rt.service.Server.BasePath, r.URL.Path)
	normalized := recording.NormalizePath(relPath)
	contentType := resp.Header.Get("Content-Type")
	status := resp.StatusCode

	err = h.recorder.Once(r.Method, normalized, func() error {
		ep := recording.BuildEndpoint(r.Method, relPath, status, string(respBody), contentType)
		updated, appendErr := recording.AppendEndpoint(rt.service, &h.recMu, ep)
		if appendErr != nil {
			return appendErr
		}
		h.router.Swap(updated)
		return nil
	})
	if err != nil {
		h.log.Warn("failed to persist recorded endpoint", "error", err, "path", r.URL.Path)
	}

	h.appendLog(&requestlog.Entry{
		Service:      rt.service.Name,
		At:           start,
		Method:       r.Method,
		Path:         r.URL.Path,
		Status:       status,
		DurationMs:   time.Since(start).Milliseconds(),
		RequestBody:  requestlog.Snippet(string(body)),
		ResponseBody: requestlog.Snippet(string(respBody)),
		Source:       requestlog.SourceRecordedProxy,
	})
}

func (h *handler) writeProxyError(w http.ResponseWriter, r *http.Request, rt *routingTable, start time.Time, err error) {
	status := http.StatusBadGateway
	kind := "upstream_unreachable"
	if apierrors.Is(err, apierrors.KindUpstreamTimeout) {
		status = http.StatusGatewayTimeout
		kind = "upstream_timeout"
	}
	h.writeError(w, r, rt, start, status, kind, nil)
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, rt *routingTable, start time.Time, status int, code string, endpointIndex *int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload, _ := json.Marshal(map[string]string{"error": code})
	_, _ = w.Write(payload)

	idx := -1
	if endpointIndex != nil {
		idx = *endpointIndex
	}
	h.appendLog(&requestlog.Entry{
		Service:       rt.service.Name,
		At:            start,
		Method:        r.Method,
		Path:          r.URL.Path,
		EndpointIndex: idx,
		Status:        status,
		DurationMs:    time.Since(start).Milliseconds(),
		Source:        requestlog.SourceNormal,
		Error:         code,
	})
}

func (h *handler) appendLog(entry *requestlog.Entry) {
	if h.logs != nil {
		h.logs.Append(entry)
	}
}

// stripBasePath removes a service's base_path prefix the same way
// matcher.Match does, so a recorded endpoint's path and a later request's
// matched path agree on what "the path" means.
func stripBasePath(basePath, path string) string {
	rel := strings.TrimPrefix(path, basePath)
	if rel == "" {
		return "/"
	}
	return rel
}

func copyResponse(w http.ResponseWriter, resp *http.Response, body []byte) {
	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

