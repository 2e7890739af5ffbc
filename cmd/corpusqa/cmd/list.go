package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List documents in the corpus",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.close()

		documents := p.store.Documents()
		if len(documents) == 0 {
			fmt.Println("No documents in the corpus.")
			return nil
		}

		for _, d := range documents {
			fmt.Printf("%s\t%s\n", d.Name, d.Citation)
		}
		fmt.Printf("\n%d documents, %d chunks\n", len(documents), p.store.ChunkCount())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
