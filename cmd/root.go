package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "matchd",
	Short: "Food-supply solicitation matching service",
	Long:  "Matches food-supply solicitations to supplier, distributor, and nonprofit organizations using geographic proximity, capability overlap, regional need, and an optional LLM scoring pass.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
