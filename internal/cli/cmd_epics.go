package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/epic"
)

// newEpicsCmd creates the epics command group
func newEpicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epics",
		Short: "Work with archived epics",
	}
	cmd.AddCommand(newEpicsListCmd())
	cmd.AddCommand(newEpicsArchiveCmd())
	cmd.AddCommand(newEpicsRestoreCmd())
	return cmd
}

func newEpicsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List archived epics",
		Long: `List a project's archived epics, numerically ordered by ID.

The local cache answers immediately when the daemon is unreachable.

Example:
  taskvault epics list
  taskvault epics list --project website`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := newClient(cmd)
			if err != nil {
				return err
			}

			epics, err := c.LoadArchivedEpics(context.Background(), projectFlag(cmd))
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(epics)
			}

			if len(epics) == 0 {
				fmt.Println("No archived epics.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTORIES\tARCHIVED")
			for _, e := range epics {
				archived := "-"
				if e.ArchivedAt != nil {
					archived = e.ArchivedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.ID, e.Title, len(e.Stories), archived)
			}
			w.Flush()
			return nil
		},
	}
}

func newEpicsArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <epic-id>",
		Short: "Archive an epic",
		Long: `Archive an epic. The local view updates immediately; if the daemon
rejects the change the archived collection is reloaded and the failure
is reported.

Example:
  taskvault epics archive EPIC-7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, _, err := newController(cmd)
			if err != nil {
				return err
			}

			title, _ := cmd.Flags().GetString("title")
			e := epic.Epic{ID: args[0], Title: title}
			return ctrl.ArchiveEpic(context.Background(), projectFlag(cmd), e)
		},
	}
	cmd.Flags().String("title", "", "epic title for the archived view")
	return cmd
}

func newEpicsRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <epic-id>",
		Short: "Restore an archived epic",
		Long: `Restore an epic from the archive back to the active board.

Example:
  taskvault epics restore EPIC-7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, _, err := newController(cmd)
			if err != nil {
				return err
			}
			return ctrl.RestoreEpic(context.Background(), projectFlag(cmd), args[0])
		},
	}
}
