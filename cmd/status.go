package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civitas/spamguard/pkg/resource"
	"github.com/civitas/spamguard/pkg/strategy"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured analyzers and model statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, reg, _, err := loadService()
		if err != nil {
			return err
		}

		fmt.Printf("Spam threshold: %.2f (aggregation: %s)\n", cfg.Detection.SpamThreshold, cfg.Detection.Aggregation)

		fmt.Printf("\nTrainable resources:\n")
		for kind, adapter := range resource.NewMap(cfg.Resources.Modules) {
			fmt.Printf("  %-20s -> %s\n", kind, adapter)
		}

		fmt.Printf("\nAnalyzers:\n")
		ctx := context.Background()
		for _, name := range reg.Names() {
			st, err := reg.Resolve(ctx, name)
			if err != nil {
				fmt.Printf("  %-12s unavailable: %v\n", name, err)
				continue
			}

			fmt.Printf("  %-12s ready\n", name)

			if bayes, ok := st.(*strategy.Bayes); ok {
				for _, category := range bayes.Categories() {
					learns, tokens, vocab, err := bayes.Stats(ctx, category)
					if err != nil {
						fmt.Printf("    %-8s stats unavailable: %v\n", category, err)
						continue
					}
					fmt.Printf("    %-8s %d learns, %d tokens, %d distinct\n", category, learns, tokens, vocab)
				}
			}
		}

		return nil
	},
}
