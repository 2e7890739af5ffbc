package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the corpus with citations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := strings.Join(args, " ")

		p, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.close()

		answer, err := p.store.Query(ctx, question)
		if err != nil {
			return err
		}

		fmt.Println(answer.Formatted())

		for model, tc := range answer.TokenCounts() {
			logger.DebugContext(ctx, "token usage",
				slog.String("model", model),
				slog.Int("prompt", tc.Prompt),
				slog.Int("completion", tc.Completion))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
