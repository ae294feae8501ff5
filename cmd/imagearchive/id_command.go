package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imagearchive/internal/config"
)

func newIDCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "id <file>",
		Short: "Print an image's identifier, assigning one if it has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve %q: %w", args[0], err)
			}

			backend, err := ctx.openBackend()
			if err != nil {
				return err
			}
			defer backend.Close()

			id, err := backend.Assign(ctx.runContext(cmd), path, force)
			if err != nil {
				return fmt.Errorf("assign identifier to %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace any existing identifier with a new one")
	return cmd
}
