package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pmaojo/apicentric/pkg/spec"
)

// ValidateFlags binds the `validate` subcommand's flags.
type ValidateFlags struct {
	Path string
}

var validateFlags ValidateFlags

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate one service definition file or a directory of them",
	Long: `Run the §4.1 validator against --path. If --path is a directory every
*.yaml/*.yml file in it is validated; if it is a file, only that file is.
Exits 0 if everything is valid, 1 otherwise.`,
	Example: `  simulator validate --path ./services
  simulator validate --path ./services/users.yaml`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateFlags.Path, "path", "", "File or directory to validate (required)")
	validateCmd.MarkFlagRequired("path")
}

func runValidate(cmd *cobra.Command, args []string) error {
	info, err := os.Stat(validateFlags.Path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		result, err := spec.LoadDir(validateFlags.Path)
		if err != nil {
			return err
		}
		if result.Errors.HasErrors() {
			fmt.Fprintln(os.Stderr, result.Errors.Error())
			os.Exit(1)
		}
		fmt.Printf("%d service(s) valid\n", len(result.Services))
		return nil
	}

	if _, err := spec.LoadFile(validateFlags.Path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("valid")
	return nil
}
