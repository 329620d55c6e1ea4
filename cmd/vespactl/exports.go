package main

import (
	"github.com/spf13/cobra"

	"github.com/inbo/vespa-db-sub000/pkg/container"
)

func exportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "Export maintenance",
	}

	var days int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete export files and records past retention",
		RunE: withContainer(func(cmd *cobra.Command, c *container.Container) error {
			if days <= 0 {
				days = c.Config.Export.RetentionDays
			}
			deleted, err := c.ExportService.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int64{"deleted": deleted})
		}),
	}
	cleanup.Flags().IntVar(&days, "days", 0, "retention in days (default: configured retention)")

	cmd.AddCommand(cleanup)
	return cmd
}
