package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pmaojo/apicentric/pkg/logging"
	"github.com/pmaojo/apicentric/pkg/manager"
	"github.com/pmaojo/apicentric/pkg/registry"
)

// watchDebounce coalesces a burst of filesystem events (an editor's
// write-then-rename, multiple files changed by a script) into one reload.
const watchDebounce = 300 * time.Millisecond

// StartFlags binds the `start` subcommand's flags.
type StartFlags struct {
	ServicesDir string
	DBPath      string
	PortLow     int
	PortHigh    int
	Watch       bool
	LogLevel    string
	LogFormat   string
	PidFile     string
}

var startFlags StartFlags

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Discover and start every service in a directory",
	Long: `Load every *.yaml/*.yml service definition in --services-dir, start a
listener for each, and block until a termination signal is received.`,
	Example: `  simulator start --services-dir ./services
  simulator start --services-dir ./services --watch`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startFlags.ServicesDir, "services-dir", "", "Directory of service YAML definitions (default ./services)")
	startCmd.Flags().StringVar(&startFlags.DBPath, "db", "", "Path to the service registry database")
	startCmd.Flags().IntVar(&startFlags.PortLow, "port-low", 20000, "Lowest port in the allocation range")
	startCmd.Flags().IntVar(&startFlags.PortHigh, "port-high", 21000, "Highest port in the allocation range")
	startCmd.Flags().BoolVar(&startFlags.Watch, "watch", false, "Watch --services-dir and reload on change")
	startCmd.Flags().StringVar(&startFlags.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	startCmd.Flags().StringVar(&startFlags.LogFormat, "log-format", "text", "Log format: text, json")
	startCmd.Flags().StringVar(&startFlags.PidFile, "pid-file", "", "Path to write the running process's PID (default ~/.apicentric/simulator.pid)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg := resolveConfig(cmd)

	log := logging.New(logging.Config{Level: parseLogLevel(startFlags.LogLevel), Format: logging.Format(startFlags.LogFormat)})

	reg, err := registry.Open(cfg.DBPath, log.With("component", "registry"))
	if err != nil {
		return err
	}

	mgr := manager.New(cfg.ServicesDir, cfg.PortLow, cfg.PortHigh, reg, log.With("component", "manager"))

	changed, loadErrs, err := mgr.LoadAll()
	if err != nil {
		return err
	}
	if loadErrs.HasErrors() {
		fmt.Fprintln(os.Stderr, loadErrs.Error())
	}
	if len(changed) > 0 {
		log.Info("services changed since last run", "services", changed)
	}

	for _, summary := range mgr.List() {
		if err := mgr.Start(summary.Name); err != nil {
			log.Error("failed to start service", "service", summary.Name, "error", err)
		}
	}

	if err := writePidFile(resolvePidFile(startFlags.PidFile)); err != nil {
		log.Warn("failed to write PID file", "error", err)
	} else {
		defer os.Remove(resolvePidFile(startFlags.PidFile))
	}

	var watcher *fsnotify.Watcher
	if startFlags.Watch {
		watcher, err = startWatch(cfg.ServicesDir, mgr, log)
		if err != nil {
			log.Warn("failed to start directory watch", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	log.Info("simulator started", "services", len(mgr.List()), "services_dir", cfg.ServicesDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	for _, summary := range mgr.List() {
		if !summary.IsRunning {
			continue
		}
		if err := mgr.Stop(summary.Name); err != nil {
			log.Error("failed to stop service", "service", summary.Name, "error", err)
		}
	}
	return nil
}

// startWatch debounces filesystem events on servicesDir into a single
// manual Reload call per quiet period, matching the optional hot-reload
// behavior described for `start --watch`.
func startWatch(servicesDir string, mgr *manager.Manager, log *slog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(servicesDir); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		var timer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					for _, err := range mgr.Reload() {
						log.Warn("reload error", "error", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watch error", "error", err)
			}
		}
	}()

	return watcher, nil
}

func resolvePidFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "simulator.pid")
	}
	return filepath.Join(home, ".apicentric", "simulator.pid")
}

func writePidFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func resolveConfig(cmd *cobra.Command) Config {
	cfg := applyEnv(DefaultConfig())

	if startFlags.ServicesDir != "" {
		cfg.ServicesDir = startFlags.ServicesDir
	}
	if startFlags.DBPath != "" {
		cfg.DBPath = startFlags.DBPath
	}
	cfg.PortLow = startFlags.PortLow
	cfg.PortHigh = startFlags.PortHigh
	return cfg
}

func parseLogLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
