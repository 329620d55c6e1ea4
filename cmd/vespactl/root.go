package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/inbo/vespa-db-sub000/pkg/container"
)

type containerKey struct{}

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vespactl",
		Short:         "Vespa-DB maintenance CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		syncCommand(),
		rebuildCacheCommand(),
		reservationsCommand(),
		exportsCommand(),
	)

	return rootCmd
}

// withContainer builds the dependency container for the duration of run.
func withContainer(run func(cmd *cobra.Command, c *container.Container) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		c, err := container.NewContainer()
		if err != nil {
			return fmt.Errorf("initialize container: %w", err)
		}
		defer c.Cleanup()

		return run(cmd, c)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
