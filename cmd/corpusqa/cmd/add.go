package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corpusqa/corpusqa/internal/chunk"
	"github.com/corpusqa/corpusqa/internal/docs"
)

var (
	addCitation     string
	addDocname      string
	addKey          string
	addDisableCheck bool
)

var addCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Ingest documents into the corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.close()

		for _, path := range args {
			opts := docs.AddOptions{DisableCheck: addDisableCheck}
			if len(args) == 1 {
				opts.Citation = addCitation
				opts.Docname = addDocname
				opts.DocKey = addKey
			}
			name, err := p.store.AddPath(ctx, path, opts)
			if err != nil {
				return fmt.Errorf("add %s: %w", path, err)
			}
			fmt.Printf("Added %s as %s\n", path, name)
		}

		return p.save(ctx)
	},
}

func init() {
	addCmd.Flags().StringVar(&addCitation, "citation", "", "citation to use instead of asking the model (single path only)")
	addCmd.Flags().StringVar(&addDocname, "docname", "", "citation key to use instead of deriving one (single path only)")
	addCmd.Flags().StringVar(&addKey, "key", "", "document key to use instead of the content hash (single path only)")
	addCmd.Flags().BoolVar(&addDisableCheck, "disable-check", false, "skip the text-likeness validation")
	rootCmd.AddCommand(addCmd)
}

// chunkOptions maps the chunking config onto chunker options.
func chunkOptions() chunk.Options {
	return chunk.Options{
		ChunkSize: cfg.Chunking.ChunkSize,
		Overlap:   cfg.Chunking.Overlap,
	}
}
