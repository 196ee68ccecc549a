package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c21-japan/homemart-sub002/internal/api"
	"github.com/c21-japan/homemart-sub002/internal/api/handlers"
	"github.com/c21-japan/homemart-sub002/internal/auth"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API サーバー起動",
	Long: `REST API サーバーを起動します。

Endpoints:
  GET  /health                     - Health check
  GET  /metrics                    - Prometheus metrics
  GET|POST /api/reporting/runner   - 販売状況報告バッチ (CRON_SECRET)
  POST /api/cron/daily-tasks       - 個別タスク実行 (CRON_SECRET)
  GET  /api/cron/daily-tasks       - リマインダー＋期限アラート (CRON_SECRET)
  POST /api/agreements             - 媒介契約登録 (staff JWT)
  GET  /api/agreements/due         - 報告対象一覧 (staff JWT)
  GET  /api/agreements/stats       - 集計 (staff JWT)
  GET|PATCH /api/agreements/{id}   - 参照・更新 (staff JWT)
  GET  /api/deadlines/preview      - 期限試算 (staff JWT)

Example:
  go run ./cmd/homemart api
  go run ./cmd/homemart api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	withScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API サーバーポート (default PORT)")
	apiCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "同一プロセスで cron スケジューラも起動")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== homemart API Server ===")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, log := a.cfg, a.log

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	if cfg.Auth.CronSecret == "" {
		log.Warn("CRON_SECRET is empty: trigger endpoints reject every request")
	}
	if cfg.Auth.StaffJWTSecret == "" {
		log.Warn("STAFF_JWT_SECRET is empty: staff endpoints reject every request")
	}

	router := api.NewRouter(api.Handlers{
		Reporting:  handlers.NewReportingHandler(a.dispatcher, a.scheduler, cfg.Auth.CronSecret, log),
		Agreements: handlers.NewAgreementHandler(a.agreements, log),
		Deadlines:  handlers.NewDeadlineHandler(a.calc),
		Checklists: handlers.NewChecklistHandler(a.notifier, log),
	}, auth.NewVerifier(cfg.Auth.StaffJWTSecret), cfg.MetricsEnabled, log)

	server := api.New(cfg, log, router)

	// Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	if withScheduler {
		a.scheduler.Start()
		defer a.scheduler.Stop()
	}

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	if withScheduler {
		fmt.Println("   Scheduler running in-process")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
