package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"imagearchive/internal/catalog"
	"imagearchive/internal/config"
	"imagearchive/internal/identity"
	"imagearchive/internal/snapshot"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Build and inspect catalog snapshots",
	}

	catalogCmd.AddCommand(newCatalogBuildCommand(ctx))
	catalogCmd.AddCommand(newCatalogShowCommand(ctx))
	catalogCmd.AddCommand(newCatalogTreeCommand(ctx))

	return catalogCmd
}

type buildResult struct {
	Snapshot     string `json:"snapshot"`
	Root         string `json:"root"`
	Records      int    `json:"records"`
	Directories  int    `json:"directories"`
	Images       int    `json:"images"`
	Unidentified int    `json:"unidentified"`
}

func newCatalogBuildCommand(ctx *commandContext) *cobra.Command {
	var forceIDs bool
	var outputFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Normalize a directory tree and write a catalog snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			root, err := resolveRoot(cfg, args)
			if err != nil {
				return err
			}
			outputDir, err := ctx.outputDir(outputFlag)
			if err != nil {
				return err
			}

			backend, err := ctx.openBackend()
			if err != nil {
				return err
			}
			defer backend.Close()

			runCtx := ctx.runContext(cmd)
			normalizer := catalog.NewNormalizer(backend, catalog.OptionsFromConfig(cfg), logger)
			tree, err := normalizer.Normalize(runCtx, root, forceIDs)
			if err != nil {
				return fmt.Errorf("normalize %s: %w", root, err)
			}
			records := catalog.Flatten(tree)

			store := snapshot.NewStore(outputDir, logger)
			path, err := store.Write(runCtx, records)
			if err != nil {
				return err
			}

			stats := catalog.Count(tree)
			result := buildResult{
				Snapshot:     path,
				Root:         root,
				Records:      len(records),
				Directories:  stats.Directories,
				Images:       stats.Images,
				Unidentified: stats.Unidentified,
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog written to %s\n", path)
			fmt.Fprintln(out, renderKeyValues([][2]string{
				{"Records", strconv.Itoa(result.Records)},
				{"Directories", strconv.Itoa(result.Directories)},
				{"Images", strconv.Itoa(result.Images)},
				{"Without identifier", strconv.Itoa(result.Unidentified)},
			}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceIDs, "force-ids", false, "Mint new identifiers even for images that already carry one")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Directory to write the snapshot into (defaults to paths.output_dir)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the build summary as JSON")
	return cmd
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the most recent catalog snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if jsonOutput {
				return writeJSON(cmd, records)
			}

			images := 0
			for _, record := range records {
				if catalog.IsImageType(record[catalog.FieldMediaType]) {
					images++
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderKeyValues([][2]string{
				{"Snapshot", info.Name},
				{"Size", humanize.Bytes(uint64(max(info.Size, 0)))},
				{"Written", humanize.Time(info.ModTime)},
				{"Records", strconv.Itoa(len(records))},
				{"Images", strconv.Itoa(images)},
			}))

			if len(records) == 0 {
				return nil
			}
			fmt.Fprintln(out, renderRecords(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Directory holding snapshots (defaults to paths.output_dir)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the snapshot records as JSON")
	return cmd
}

func newCatalogTreeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [dir]",
		Short: "Print the normalized tree of a directory without assigning identifiers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			root, err := resolveRoot(cfg, args)
			if err != nil {
				return err
			}

			backend, err := ctx.openBackend()
			if err != nil {
				return err
			}
			defer backend.Close()

			normalizer := catalog.NewNormalizer(identity.ReadOnly{Source: backend}, catalog.OptionsFromConfig(cfg), logger)
			tree, err := normalizer.Normalize(ctx.runContext(cmd), root, false)
			if err != nil {
				return fmt.Errorf("normalize %s: %w", root, err)
			}

			data, err := json.MarshalIndent(tree, "", "    ")
			if err != nil {
				return fmt.Errorf("encode tree: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func resolveRoot(cfg *config.Config, args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return cfg.Paths.IngestDir, nil
	}
	root, err := config.ExpandPath(strings.TrimSpace(args[0]))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", args[0], err)
	}
	return root, nil
}

// renderRecords tabulates the intrinsic fields of each record plus a count of
// the inherited metadata keys it carries.
func renderRecords(records []catalog.Record) string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		extra := 0
		for key := range record {
			switch key {
			case catalog.FieldFilePath, catalog.FieldMediaType, catalog.FieldUUID:
			default:
				extra++
			}
		}
		rows = append(rows, []string{
			record[catalog.FieldFilePath],
			record[catalog.FieldMediaType],
			record[catalog.FieldUUID],
			strconv.Itoa(extra),
		})
	}
	return renderTable(
		[]string{"Path", "Media Type", "UUID", "Metadata"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	)
}
