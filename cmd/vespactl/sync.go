package main

import (
	"github.com/spf13/cobra"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/pkg/container"
)

func syncCommand() *cobra.Command {
	var opts model.SyncObservationsPayload

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch observations from waarnemingen.be and reconcile them",
		Long: `Runs one sync immediately. Without flags the configured window is used.
--date and --since-weeks are mutually exclusive.`,
		RunE: withContainer(func(cmd *cobra.Command, c *container.Container) error {
			summary, err := c.SyncService.Run(cmd.Context(), opts)
			if summary != nil {
				if perr := printJSON(cmd.OutOrStdout(), summary); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		}),
	}

	cmd.Flags().IntVar(&opts.SinceWeeks, "since-weeks", 0, "sync observations modified in the last N weeks")
	cmd.Flags().StringVar(&opts.Date, "date", "", "sync observations modified since this date (ddMMyyyy)")
	cmd.MarkFlagsMutuallyExclusive("since-weeks", "date")

	return cmd
}

func rebuildCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-cache",
		Short: "Enqueue regeneration of every pre-warmed GeoJSON payload",
		RunE: withContainer(func(cmd *cobra.Command, c *container.Container) error {
			n, err := c.GeoJSONService.Rebuild(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"enqueued": n})
		}),
	}
}
