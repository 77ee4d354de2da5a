package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// StopFlags binds the `stop` subcommand's flags.
type StopFlags struct {
	PidFile string
	Force   bool
}

var stopFlags StopFlags

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal a running simulator instance to shut down",
	Long: `Read the PID file written by a running "simulator start" and send it a
termination signal. The actual IPC mechanism beyond this signal is out of
scope; a running instance stops itself on receiving SIGTERM/SIGINT.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopFlags.PidFile, "pid-file", "", "Path to the PID file (default ~/.apicentric/simulator.pid)")
	stopCmd.Flags().BoolVarP(&stopFlags.Force, "force", "f", false, "Send SIGKILL instead of SIGTERM")
}

func runStop(cmd *cobra.Command, args []string) error {
	path := resolvePidFile(stopFlags.PidFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no running instance found (missing PID file %s)", path)
		}
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("corrupt PID file %s: %w", path, err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("process %d not found: %w", pid, err)
	}

	sig := syscall.SIGTERM
	if stopFlags.Force {
		sig = syscall.SIGKILL
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	if !stopFlags.Force {
		waitForExit(pid, 10*time.Second)
	}
	fmt.Printf("stopped simulator (pid %d)\n", pid)
	return nil
}

// waitForExit polls until pid no longer responds to signal 0 or timeout
// elapses, giving a graceful shutdown a chance to finish before returning.
func waitForExit(pid int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		process, err := os.FindProcess(pid)
		if err != nil || process.Signal(syscall.Signal(0)) != nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}
