package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civitas/spamguard/pkg/config"
	"github.com/civitas/spamguard/pkg/detection"
	"github.com/civitas/spamguard/pkg/registry"
)

var rootConfig string

var rootCmd = &cobra.Command{
	Use:   "spamguard",
	Short: "spamguard - spam classification for participatory platforms",
	Long: `spamguard trains and runs pluggable spam analyzers (Bayesian, scripted)
over participatory-platform content: comments, proposals, debates,
meetings, initiatives and user profiles.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("spamguard - participatory platform spam filter")
		fmt.Println("Use 'spamguard --help' for usage information")
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootConfig, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(untrainCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// loadService builds the registry and detection service from the
// configured analyzers.
func loadService() (*config.Config, *registry.Registry, *detection.Service, error) {
	cfg, err := config.LoadConfig(rootConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	reg, err := registry.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, reg, detection.NewService(reg, cfg), nil
}
