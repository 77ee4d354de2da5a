package cli

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pmaojo/apicentric/pkg/logging"
	"github.com/pmaojo/apicentric/pkg/recording"
	"github.com/pmaojo/apicentric/pkg/spec"
)

// RecordFlags binds the `record` subcommand's flags.
type RecordFlags struct {
	Output string
	URL    string
	Port   int
}

var recordFlags RecordFlags

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record live traffic against an upstream into a new service definition",
	Long: `Boot a single listener that forwards every request to --url, observes the
responses, and writes an accumulated service YAML into --output on shutdown.`,
	Example: `  simulator record --output ./services --url https://api.example.com`,
	RunE:    runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordFlags.Output, "output", "", "Directory to write the recorded service YAML into (required)")
	recordCmd.Flags().StringVar(&recordFlags.URL, "url", "", "Upstream base URL to forward every request to (required)")
	recordCmd.Flags().IntVar(&recordFlags.Port, "port", 0, "Port to listen on (0 picks any free port)")
	recordCmd.MarkFlagRequired("output")
	recordCmd.MarkFlagRequired("url")
}

// recordSession accumulates endpoints observed during one recording run,
// independent from the per-service recording.AppendEndpoint path used by a
// running simulator, since nothing is persisted until shutdown.
type recordSession struct {
	mu        sync.Mutex
	seen      map[string]bool
	endpoints []*spec.Endpoint
}

func newRecordSession() *recordSession {
	return &recordSession{seen: make(map[string]bool)}
}

func (s *recordSession) observe(ep *spec.Endpoint) {
	key := ep.Method + " " + ep.Path
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.endpoints = append(s.endpoints, ep)
}

func (s *recordSession) snapshot() []*spec.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*spec.Endpoint, len(s.endpoints))
	copy(out, s.endpoints)
	return out
}

func runRecord(cmd *cobra.Command, args []string) error {
	log := logging.New(logging.DefaultConfig())

	upstream, err := url.Parse(recordFlags.URL)
	if err != nil {
		return fmt.Errorf("invalid --url %q: %w", recordFlags.URL, err)
	}

	if err := os.MkdirAll(recordFlags.Output, 0o755); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", recordFlags.Port))
	if err != nil {
		return err
	}
	defer ln.Close()

	session := newRecordSession()
	rec := recording.NewRecorder()

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
			}

			resp, respBody, err := rec.Forward(r.Context(), recordFlags.URL, r, body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			for k, values := range resp.Header {
				for _, v := range values {
					w.Header().Add(k, v)
				}
			}
			w.WriteHeader(resp.StatusCode)
			_, _ = w.Write(respBody)

			ep := recording.BuildEndpoint(r.Method, r.URL.Path, resp.StatusCode, string(respBody), resp.Header.Get("Content-Type"))
			session.observe(ep)
			log.Info("recorded request", "method", r.Method, "path", r.URL.Path, "normalized", ep.Path)
		}),
	}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("record listener error", "error", err)
		}
	}()

	log.Info("recording", "listen", ln.Addr().String(), "upstream", recordFlags.URL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	_ = srv.Close()

	name := serviceNameFromHost(upstream.Host)
	svc := &spec.Service{
		Name: name,
		Server: spec.Server{
			BasePath:     "/",
			ProxyBaseURL: recordFlags.URL,
		},
		Endpoints: session.snapshot(),
	}

	path := filepath.Join(recordFlags.Output, name+".yaml")
	if err := spec.Save(svc, path); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d endpoint(s))\n", path, len(svc.Endpoints))
	return nil
}

func serviceNameFromHost(host string) string {
	host = strings.Split(host, ":")[0]
	host = strings.ReplaceAll(host, ".", "-")
	if host == "" {
		return "recorded"
	}
	return host
}
