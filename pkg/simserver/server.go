// Package simserver implements the per-service HTTP server (§4.6): one
// listener and one cooperative task group per running service, routing
// matched requests through the template/script/selector pipeline and
// falling back to the recording proxy or a 404 on no match.
package simserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pmaojo/apicentric/pkg/apierrors"
	"github.com/pmaojo/apicentric/pkg/logging"
	"github.com/pmaojo/apicentric/pkg/requestlog"
	"github.com/pmaojo/apicentric/pkg/spec"
)

// drainTimeout bounds how long Stop waits for in-flight requests (§5).
const drainTimeout = 5 * time.Second

// readHeaderTimeout bounds how long the acceptor waits to read request
// headers before giving up on a slow client (§5 connection read default).
const readHeaderTimeout = 30 * time.Second

// Server owns one service's listener, routing table, and request log.
type Server struct {
	router *router
	logs   *requestlog.Store
	http   *http.Server
	group  *errgroup.Group
	ln     net.Listener

	log *slog.Logger
}

// New creates a Server for svc. The server does not bind a port until Start.
func New(svc *spec.Service, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	r := newRouter(svc)
	logs := requestlog.New(0)
	h := newHandler(r, logs, log)

	return &Server{
		router: r,
		logs:   logs,
		http: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: log,
	}
}

// Start binds 0.0.0.0:port and begins accepting connections on a background
// task. It returns once the listener is bound; acceptor errors surface
// through Stop.
func (s *Server) Start(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return apierrors.Wrap(apierrors.KindPortBindFailed, fmt.Sprintf(":%d", port), err)
	}

	s.ln = ln
	group, _ := errgroup.WithContext(context.Background())
	s.group = group
	s.group.Go(func() error {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("service listener error", "port", port, "error", err)
			return err
		}
		return nil
	})

	s.log.Info("service listening", "port", port)
	return nil
}

// Stop signals shutdown, drains in-flight requests up to drainTimeout, and
// waits for the acceptor task to finish.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		_ = s.http.Close()
	}

	if s.group != nil {
		return s.group.Wait()
	}
	return nil
}

// Reload swaps in a new service definition without restarting the listener
// (§4.7: a recording-driven endpoint append becomes visible immediately via
// this same path).
func (s *Server) Reload(svc *spec.Service) {
	s.router.Swap(svc)
}

// Logs returns the service's request log store.
func (s *Server) Logs() *requestlog.Store {
	return s.logs
}

// Service returns the currently active service definition.
func (s *Server) Service() *spec.Service {
	return s.router.Load().service
}

// Addr returns the bound listener address. Only valid after Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}
