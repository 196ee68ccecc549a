package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/c21-japan/homemart-sub002/internal/api/handlers"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/internal/reporting"
	"github.com/c21-japan/homemart-sub002/internal/scheduler"
)

// reportCmd groups the report batch commands
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "販売状況報告",
}

var reportRunCmd = &cobra.Command{
	Use:   "run",
	Short: "報告バッチを実行",
	Long: `報告期日を迎えた媒介契約の販売状況報告を送付します。

--as-of を省略すると業務タイムゾーンの本日が基準日になります。
同時に別のバッチが実行中の場合は何もせず終了します。

Example:
  go run ./cmd/homemart report run
  go run ./cmd/homemart report run --as-of 2024-01-08 --json`,
	RunE: runReports,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "通知タスク",
}

var tasksRunCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "タスクを実行 (reports|alerts|reminders|reform|team|all)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasks,
}

var (
	reportAsOf string
	reportJSON bool
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportRunCmd)
	reportRunCmd.Flags().StringVar(&reportAsOf, "as-of", "", "基準日 (YYYY-MM-DD)")
	reportRunCmd.Flags().BoolVar(&reportJSON, "json", false, "結果を JSON で出力")

	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksRunCmd)
}

func runReports(cmd *cobra.Command, args []string) error {
	var asOf time.Time
	if reportAsOf != "" {
		d, err := deadline.ParseDate(reportAsOf)
		if err != nil {
			return fmt.Errorf("--as-of: %w", err)
		}
		asOf = d
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	result, err := a.dispatcher.Run(cmd.Context(), asOf)
	if errors.Is(err, reporting.ErrBatchInProgress) {
		PrintWarning("別の報告バッチが実行中です")
		return nil
	}
	if errors.Is(err, reporting.ErrFutureAsOf) {
		return fmt.Errorf("--as-of: %w", err)
	}
	if err != nil {
		return fmt.Errorf("report batch: %w", err)
	}

	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	PrintDoubleSeparator()
	fmt.Printf("  販売状況報告 (%s)\n", result.AsOf)
	PrintSeparator()
	printOutcome(scheduler.Outcome{
		Processed: result.Processed,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
	})
	PrintJobCompletion("reports", time.Since(start).Seconds())
	return nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	task := args[0]
	names := []string{task}
	if task == "all" {
		names = handlers.ManualTasks
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var failed []string
	for _, name := range names {
		PrintSeparator()
		fmt.Printf("[%s]\n", name)
		result, err := a.scheduler.RunNow(cmd.Context(), name)
		if errors.Is(err, scheduler.ErrJobNotFound) {
			return fmt.Errorf("unknown task %q", name)
		}
		printOutcome(result.Outcome)
		if err != nil {
			PrintError(err.Error())
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("tasks failed: %v", failed)
	}
	PrintSuccess("All tasks completed")
	return nil
}

func printOutcome(o scheduler.Outcome) {
	PrintKeyValue("Processed", fmt.Sprintf("%d", o.Processed), 10)
	PrintKeyValue("Succeeded", fmt.Sprintf("%d", o.Succeeded), 10)
	PrintKeyValue("Failed", fmt.Sprintf("%d", o.Failed), 10)
	PrintKeyValue("Skipped", fmt.Sprintf("%d", o.Skipped), 10)
}
