package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c21-japan/homemart-sub002/migrations"
	"github.com/c21-japan/homemart-sub002/pkg/config"
	"github.com/c21-japan/homemart-sub002/pkg/database"
)

// migrateCmd applies the embedded schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "データベーススキーマを適用",
	Long: `migrations/*.sql を未適用のものだけファイル名順に適用します。

Example:
  go run ./cmd/homemart migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	applied, err := db.Migrate(cmd.Context(), migrations.FS)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if len(applied) == 0 {
		PrintInfo("Schema is up to date")
		return nil
	}
	fmt.Println("Applied migrations:")
	PrintList(applied)
	return nil
}
