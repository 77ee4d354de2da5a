// Package cli implements the simulator command-line surface (§6): start,
// stop, validate, status, and record, one file per subcommand with a
// package-level Flags struct each.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pmaojo/apicentric/pkg/apierrors"
)

// rootCmd is the base command when simulator is invoked with no subcommand.
var rootCmd = &cobra.Command{
	Use:   "simulator",
	Short: "simulator is a YAML-defined HTTP API mock server",
	Long: `simulator runs any number of independently configured mock HTTP services
from YAML definitions, matching requests by method/path/headers/body and
responding from templated, scenario-driven, or scripted fixtures.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from cmd/simulator/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := 1
		var apiErr *apierrors.Error
		if errors.As(err, &apiErr) {
			code = apierrors.ExitCode(apiErr.Kind)
		}
		os.Exit(code)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(recordCmd)
}
