package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "homemart",
	Short: "媒介契約 自動報告システム",
	Long: `homemart CLI

媒介契約のレインズ登録期限と販売状況報告を管理します。

Usage:
  go run ./cmd/homemart [command]

Examples:
  go run ./cmd/homemart api
  go run ./cmd/homemart scheduler start
  go run ./cmd/homemart report run --as-of 2024-01-08
  go run ./cmd/homemart deadline calc --signed-at 2024-01-01 --type exclusive_right`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Flags feed config.Load through the environment
		if configFile != "" {
			if err := os.Setenv("HOMEMART_ENV_FILE", configFile); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("env") {
			if err := os.Setenv("ENV", env); err != nil {
				return err
			}
		}
		if verbose {
			return os.Setenv("LOG_LEVEL", "debug")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Ctrl+C cancels the command context so a running batch stops between items.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
