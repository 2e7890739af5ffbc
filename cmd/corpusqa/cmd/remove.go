package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:     "remove <name-or-key>...",
	Aliases: []string{"rm"},
	Short:   "Remove documents from the corpus",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.close()

		for _, name := range args {
			if err := p.store.Delete(ctx, name); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", name)
		}

		return p.save(ctx)
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
