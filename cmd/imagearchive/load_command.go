package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"imagearchive/internal/archivedb"
	"imagearchive/internal/snapshot"
)

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the most recent catalog snapshot into the archive database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			outputDir, err := ctx.outputDir(outputFlag)
			if err != nil {
				return err
			}

			records, info, err := snapshot.NewStore(outputDir, logger).ReadLatest()
			if err != nil {
				if errors.Is(err, snapshot.ErrNotFound) {
					return fmt.Errorf("no catalog snapshots in %s; run 'imagearchive catalog build' first", outputDir)
				}
				return err
			}

			runCtx := ctx.runContext(cmd)
			store, err := archivedb.Open(runCtx, cfg.Database.Path, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := store.Load(runCtx, records)
			if err != nil {
				return fmt.Errorf("load %s: %w", info.Name, err)
			}
			if jsonOutput {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %s into %s\n", info.Name, store.Path())
			fmt.Fprintln(out, renderKeyValues([][2]string{
				{"Records", strconv.Itoa(summary.Records)},
				{"Images", strconv.Itoa(summary.Images)},
				{"Inserted", strconv.Itoa(summary.Inserted)},
				{"Updated", strconv.Itoa(summary.Updated)},
				{"Skipped (not an image)", strconv.Itoa(summary.SkippedNotImage)},
				{"Skipped (no identifier)", strconv.Itoa(summary.SkippedNoUUID)},
			}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Directory holding snapshots (defaults to paths.output_dir)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the load summary as JSON")
	return cmd
}
