package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/civitas/spamguard/pkg/detection"
)

var (
	trainCategory string
	trainFile     string
)

var trainCmd = &cobra.Command{
	Use:   "train [text]",
	Short: "Train the registered analyzers",
	Long: `Train every registered analyzer on a text labelled with a moderation
category ("spam" or "ham"). The text is given as an argument or read
from a file with --file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTraining(args, false)
	},
}

var untrainCmd = &cobra.Command{
	Use:   "untrain [text]",
	Short: "Reverse a previous training",
	Long: `Untrain every registered analyzer: decrement the counters a previous
train call with the same category and text incremented. Used when a
moderator reverses a spam decision.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTraining(args, true)
	},
}

func runTraining(args []string, reverse bool) error {
	text, err := textFromArgs(args, trainFile)
	if err != nil {
		return err
	}

	_, _, service, err := loadService()
	if err != nil {
		return err
	}

	ctx := context.Background()

	var report *detection.TrainingReport
	if reverse {
		report, err = service.Untrain(ctx, trainCategory, text)
	} else {
		report, err = service.Train(ctx, trainCategory, text)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Trained analyzers: %s\n", strings.Join(report.Trained, ", "))
	if report.Partial() {
		fmt.Printf("⚠️  Failed analyzers: %s\n", strings.Join(report.FailedNames(), ", "))
		for name, ferr := range report.Failed {
			fmt.Printf("   %s: %v\n", name, ferr)
		}
	}

	return nil
}

func textFromArgs(args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	}

	if len(args) == 0 {
		return "", fmt.Errorf("provide a text argument or --file")
	}

	return args[0], nil
}

func init() {
	trainCmd.Flags().StringVar(&trainCategory, "category", "spam", "Training category (spam or ham)")
	trainCmd.Flags().StringVar(&trainFile, "file", "", "Read the training text from a file")

	untrainCmd.Flags().StringVar(&trainCategory, "category", "spam", "Training category (spam or ham)")
	untrainCmd.Flags().StringVar(&trainFile, "file", "", "Read the training text from a file")
}
