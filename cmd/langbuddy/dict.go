package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langbuddy/langbuddy/pkg/dictionary"
)

func newImportDictCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-dict [file]",
		Short: "Import a vocabulary JSON file into the reference dictionary",
		Long: "Imports {korean, english, romanization, topik_level} records. Without a file argument the\n" +
			"configured dictionary path is used and downloaded from the dictionary url when missing.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := a.cfg.Dictionary.Path
			if len(args) == 1 {
				path = args[0]
			} else if err := dictionary.EnsureDictionary(ctx, path, a.cfg.Dictionary.URL); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loading vocabulary from %s...\n", path)
			entries, err := dictionary.LoadVocabulary(path)
			if err != nil {
				return fmt.Errorf("failed to load vocabulary: %w", err)
			}
			fmt.Fprintf(out, "Loaded %d entries. Importing...\n", len(entries))

			if err := a.open(); err != nil {
				return err
			}
			importer := dictionary.NewImporter(a.conn)
			if a.cfg.Debug {
				importer.Logger = a.logger
			}
			importer.OnImported = a.cache.InvalidateAll
			imported, skipped, err := importer.Import(ctx, entries)
			if err != nil {
				return fmt.Errorf("failed to import vocabulary: %w", err)
			}
			fmt.Fprintf(out, "Imported %d words (%d skipped).\n", imported, skipped)
			return nil
		},
	}
	cmd.Flags().String("dict", "data/topik_vocab.json", "Vocabulary file used when no argument is given")
	cmd.Flags().String("dict-url", "", "Download location for a missing vocabulary file (.json, .gz or .tgz)")
	return cmd
}
