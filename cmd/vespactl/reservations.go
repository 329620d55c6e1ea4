package main

import (
	"github.com/spf13/cobra"

	"github.com/inbo/vespa-db-sub000/pkg/container"
)

func reservationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reservations",
		Short: "Reservation maintenance",
	}
	cmd.AddCommand(expireCommand(), auditCommand())
	return cmd
}

func expireCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Clear reservations older than the reservation duration",
		RunE: withContainer(func(cmd *cobra.Command, c *container.Container) error {
			cleared, err := c.ObservationService.ExpireReservations(cmd.Context(), days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int64{"cleared": cleared})
		}),
	}

	cmd.Flags().IntVar(&days, "days", 0, "override the configured reservation duration in days")
	return cmd
}

func auditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Recompute per-user reservation counters",
		RunE: withContainer(func(cmd *cobra.Command, c *container.Container) error {
			corrections, err := c.ObservationService.AuditReservationCounts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), corrections)
		}),
	}
}
