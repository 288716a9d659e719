package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newArchivesCmd creates the archives command group
func newArchivesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archives",
		Short: "Work with archived task lists",
	}
	cmd.AddCommand(newArchivesListCmd())
	cmd.AddCommand(newArchivesShowCmd())
	cmd.AddCommand(newArchivesUploadCmd())
	cmd.AddCommand(newArchivesDeleteCmd())
	return cmd
}

func newArchivesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List archives",
		Long: `List a project's archives, newest first, with a preview of the
request each one captured.

Example:
  taskvault archives list
  taskvault archives list --project website`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := newClient(cmd)
			if err != nil {
				return err
			}

			archives, err := c.ListArchives(context.Background(), projectFlag(cmd))
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(archives)
			}

			if len(archives) == 0 {
				fmt.Println("No archives.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTASKS\tDONE\tPREVIEW")
			for _, a := range archives {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					a.ID, a.Timestamp.Format("2006-01-02 15:04"),
					a.Stats.Total, a.Stats.Completed, a.Preview)
			}
			w.Flush()
			return nil
		},
	}
}

func newArchivesShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <archive-id>",
		Short: "Show one archive",
		Long: `Show an archive's full task list.

Example:
  taskvault archives show abc123
  taskvault archives show abc123 --status completed,pending`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := newClient(cmd)
			if err != nil {
				return err
			}

			statuses := splitStatuses(cmd)
			a, err := c.GetArchive(context.Background(), args[0], statuses)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(a)
			}

			if a.ProjectName != "" {
				fmt.Printf("Project:  %s\n", a.ProjectName)
			}
			fmt.Printf("Archived: %s\n", a.Timestamp.Format("2006-01-02 15:04"))
			if a.InitialRequest != "" {
				fmt.Printf("Request:  %s\n", a.InitialRequest)
			}
			stats := a.EffectiveStats()
			fmt.Printf("Tasks:    %d total, %d completed, %d in progress, %d pending\n\n",
				stats.Total, stats.Completed, stats.InProgress, stats.Pending)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tNAME")
			for _, t := range a.Tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Status, t.Name)
			}
			w.Flush()
			return nil
		},
	}
	cmd.Flags().String("status", "", "comma-separated status filter")
	return cmd
}

func newArchivesUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an archive",
		Long: `Upload an exported task list as a new archive. The payload is
parsed permissively: unknown fields are ignored and tasks without an
ID are skipped.

Example:
  taskvault archives upload tasks-2026-03.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := newClient(cmd)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			a, err := c.UploadArchive(context.Background(), projectFlag(cmd), data)
			if err != nil {
				return err
			}

			fmt.Printf("Archived %d tasks as %s\n", len(a.Tasks), a.ID)
			return nil
		},
	}
}

func newArchivesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <archive-id>",
		Short: "Delete an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := newClient(cmd)
			if err != nil {
				return err
			}

			if err := c.DeleteArchive(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted archive %s\n", args[0])
			return nil
		},
	}
}

func splitStatuses(cmd *cobra.Command) []string {
	raw, _ := cmd.Flags().GetString("status")
	if raw == "" {
		return nil
	}
	var statuses []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, s)
		}
	}
	return statuses
}
