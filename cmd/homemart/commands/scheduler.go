package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "スケジューラー管理",
	Long: `スケジューラーを起動、または登録ジョブを管理します。

Subcommands:
  start   - スケジューラー起動
  list    - 登録ジョブ一覧
  run     - ジョブを即時実行
  status  - ジョブ実行状況

Example:
  go run ./cmd/homemart scheduler start
  go run ./cmd/homemart scheduler list
  go run ./cmd/homemart scheduler run reports`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "スケジューラー起動",
		Long: `スケジューラーを起動し、登録済みの全ジョブをスケジュールします。

登録ジョブ (SCHEDULE_* で変更可):
- reports:   毎日 9:00 (販売状況報告)
- alerts:    毎日 9:05 (レインズ登録期限アラート)
- reminders: 毎日 9:10 (売主・買主チェックリスト)
- reform:    毎日 9:15 (リフォームチェックリスト)
- team:      毎週月曜 8:30 (担当者別サマリー)

Ctrl+C で停止します。`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "登録ジョブ一覧",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "ジョブを即時実行",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "ジョブ実行状況",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== homemart Scheduler ===")

	a, err := newApp(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	// Start scheduler
	a.scheduler.Start()

	PrintSuccess("Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	printJobTable(a)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	a.scheduler.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	fmt.Println("Registered jobs:")
	printJobTable(a)
	return nil
}

func printJobTable(a *app) {
	widths := []int{10, 18, 25}
	PrintTableHeader([]string{"JOB", "SCHEDULE", "NEXT RUN"}, widths)
	for _, name := range a.scheduler.GetAllJobs() {
		schedule, _ := a.scheduler.Schedule(name)
		next := "-"
		if t, err := a.scheduler.NextRun(name); err == nil && !t.IsZero() {
			next = t.In(a.cfg.Location()).Format("2006-01-02 15:04:05")
		}
		PrintTableRow([]string{name, schedule, next}, widths)
	}
}

// runJob runs a job in the foreground and prints its outcome. Manual runs
// are never retried.
func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	PrintJobHeader(JobMetadata{JobType: "Manual job run", Tag: jobName, Timestamp: a.calc.Now().Format("2006-01-02 15:04:05")})

	result, err := a.scheduler.RunNow(cmd.Context(), jobName)
	printOutcome(result.Outcome)
	if err != nil {
		PrintError(err.Error())
		return fmt.Errorf("run job: %w", err)
	}

	PrintJobCompletion(jobName, result.Duration.Seconds())
	return nil
}

// showStatus prints the statistics of this process. History is kept in
// memory, so it is only populated for runs made by the same process.
func showStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	stats := a.scheduler.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, jobName := range names {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		PrintKeyValue("Schedule", stat.Schedule, 12)
		PrintKeyValue("Total Runs", fmt.Sprintf("%d", stat.TotalRuns), 12)
		PrintKeyValue("Success", fmt.Sprintf("%d (%.1f%%)", stat.SuccessCount, stat.SuccessRate*100), 12)
		PrintKeyValue("Failures", fmt.Sprintf("%d", stat.FailureCount), 12)

		if stat.LastRun != nil {
			PrintKeyValue("Last Run", stat.LastRun.Format("2006-01-02 15:04:05"), 12)
		}
		if next, err := a.scheduler.NextRun(jobName); err == nil && !next.IsZero() {
			PrintKeyValue("Next Run", next.In(a.cfg.Location()).Format("2006-01-02 15:04:05"), 12)
		}

		fmt.Println()
	}

	return nil
}
