package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pmaojo/apicentric/pkg/registry"
)

// StatusFlags binds the `status` subcommand's flags.
type StatusFlags struct {
	DBPath string
}

var statusFlags StatusFlags

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the last known state of every registered service",
	Long: `Read the service registry database and print each service's last known
port and running state. This reflects the registry on disk, not a live
handshake with a running process.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFlags.DBPath, "db", "", "Path to the service registry database")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := applyEnv(DefaultConfig())
	if statusFlags.DBPath != "" {
		cfg.DBPath = statusFlags.DBPath
	}

	reg, err := registry.Open(cfg.DBPath, nil)
	if err != nil {
		return err
	}

	records := reg.All()
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	if len(records) == 0 {
		fmt.Println("no services registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPORT\tRUNNING\tSOURCE")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%d\t%t\t%s\n", rec.Name, rec.LastPort, rec.Running, rec.SourcePath)
	}
	return w.Flush()
}
