package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/export"
)

// newExportCmd creates the export command
func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <archive-id>",
		Short: "Export an archive to CSV or Markdown",
		Long: `Render an archive's tasks into a file.

The status filter selects which tasks to export; omitting it exports
every status.

Example:
  taskvault export abc123 --format csv --out tasks.csv
  taskvault export abc123 --format markdown --status completed --out report.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, c, err := newController(cmd)
			if err != nil {
				return err
			}

			formatFlag, _ := cmd.Flags().GetString("format")
			format, err := export.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

			a, err := c.GetArchive(context.Background(), args[0], nil)
			if err != nil {
				return err
			}

			statuses := splitStatuses(cmd)
			if statuses == nil {
				// No filter means every task, whatever its status.
				seen := make(map[string]bool)
				for _, task := range a.Tasks {
					if !seen[task.Status] {
						seen[task.Status] = true
						statuses = append(statuses, task.Status)
					}
				}
			}

			renderer, err := export.NewRenderer(format, a)
			if err != nil {
				return err
			}

			data, err := ctrl.Export(a.Tasks, statuses, renderer)
			if err != nil {
				return err
			}

			outFile, _ := cmd.Flags().GetString("out")
			if outFile == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := export.WriteFile(outFile, data); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", outFile)
			return nil
		},
	}

	cmd.Flags().StringP("format", "f", "csv", "output format: csv or markdown")
	cmd.Flags().String("status", "", "comma-separated status filter")
	cmd.Flags().StringP("out", "o", "", "output file (default stdout)")

	return cmd
}
