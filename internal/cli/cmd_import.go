package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/archive"
)

// newImportCmd creates the import command
func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <archive-id>",
		Short: "Import an archive's tasks into a task list",
		Long: `Merge an archive's tasks into a task list file.

Modes:
  append   add archived tasks after the current ones (default)
  replace  discard the current list and use the archived tasks

With --tasks the current list is read from that file; without it the
archive is imported into an empty list. The merged result goes to
--out, or stdout when omitted.

Example:
  taskvault import abc123 --tasks tasks.json --out tasks.json
  taskvault import abc123 --mode replace --out tasks.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, _, err := newController(cmd)
			if err != nil {
				return err
			}

			modeFlag, _ := cmd.Flags().GetString("mode")
			mode := archive.ImportMode(modeFlag)

			var current []archive.Task
			if tasksFile, _ := cmd.Flags().GetString("tasks"); tasksFile != "" {
				data, err := os.ReadFile(tasksFile)
				if err != nil {
					return fmt.Errorf("read %s: %w", tasksFile, err)
				}
				if err := json.Unmarshal(data, &current); err != nil {
					return fmt.Errorf("parse %s: %w", tasksFile, err)
				}
			}

			outFile, _ := cmd.Flags().GetString("out")
			apply := func(merged []archive.Task) error {
				data, err := json.MarshalIndent(merged, "", "  ")
				if err != nil {
					return err
				}
				if outFile == "" {
					_, err = os.Stdout.Write(append(data, '\n'))
					return err
				}
				return os.WriteFile(outFile, data, 0o644)
			}

			return ctrl.Import(context.Background(), args[0], current, mode, apply)
		},
	}

	cmd.Flags().String("mode", string(archive.ModeAppend), "merge mode: append or replace")
	cmd.Flags().String("tasks", "", "current task list file to merge into")
	cmd.Flags().StringP("out", "o", "", "output file (default stdout)")

	return cmd
}
