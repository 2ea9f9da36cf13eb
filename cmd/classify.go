package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/civitas/spamguard/pkg/language"
)

var (
	classifyFile     string
	classifyLanguage bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Classify a text against the registered analyzers",
	Long: `Classify a text with every registered analyzer and print the combined
verdict. With --language the detected language is printed first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textFromArgs(args, classifyFile)
		if err != nil {
			return err
		}

		cfg, _, service, err := loadService()
		if err != nil {
			return err
		}

		if classifyLanguage {
			detector, err := language.NewDetector(cfg.Language.Languages, cfg.Language.MinTextLength)
			if err != nil {
				return err
			}
			code, err := detector.Detect(text)
			if err != nil {
				fmt.Printf("Language: unknown (%v)\n", err)
			} else {
				fmt.Printf("Language: %s\n", code)
			}
		}

		verdict, err := service.Classify(context.Background(), text)
		if err != nil {
			return err
		}

		label := "HAM"
		if verdict.Spam {
			label = "SPAM"
		}
		fmt.Printf("Verdict: %s (score %.4f, threshold %.2f)\n", label, verdict.Score, cfg.Detection.SpamThreshold)

		names := make([]string, 0, len(verdict.PerAnalyzer))
		for name := range verdict.PerAnalyzer {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-12s %.4f\n", name, verdict.PerAnalyzer[name])
		}

		for name, ferr := range verdict.Failures {
			fmt.Printf("  %-12s unavailable: %v\n", name, ferr)
		}

		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyFile, "file", "", "Read the text from a file")
	classifyCmd.Flags().BoolVar(&classifyLanguage, "language", false, "Detect the text language first")
}
