package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/pkg/config"
)

var deadlineCmd = &cobra.Command{
	Use:   "deadline",
	Short: "レインズ登録期限・報告日の試算",
}

var deadlineCalcCmd = &cobra.Command{
	Use:   "calc",
	Short: "締結日と契約種別から期限を計算",
	Long: `データベースに接続せずに期限を計算します。

Example:
  go run ./cmd/homemart deadline calc --signed-at 2024-01-01 --type exclusive_right
  go run ./cmd/homemart deadline calc --signed-at 2024-01-01 --type 専任`,
	RunE: runDeadlineCalc,
}

var (
	calcSignedAt string
	calcType     string
)

func init() {
	rootCmd.AddCommand(deadlineCmd)
	deadlineCmd.AddCommand(deadlineCalcCmd)
	deadlineCalcCmd.Flags().StringVar(&calcSignedAt, "signed-at", "", "締結日 (YYYY-MM-DD)")
	deadlineCalcCmd.Flags().StringVar(&calcType, "type", "", "契約種別 (exclusive_right|exclusive|general)")
	_ = deadlineCalcCmd.MarkFlagRequired("signed-at")
	_ = deadlineCalcCmd.MarkFlagRequired("type")
}

func runDeadlineCalc(cmd *cobra.Command, args []string) error {
	signedAt, err := deadline.ParseDate(calcSignedAt)
	if err != nil {
		return fmt.Errorf("--signed-at: %w", err)
	}
	ct, err := deadline.ParseContractType(calcType)
	if err != nil {
		return fmt.Errorf("--type: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	calc, err := newCalculator(cfg)
	if err != nil {
		return err
	}

	d := calc.Derive(signedAt, ct)

	PrintDoubleSeparator()
	fmt.Printf("  %s媒介契約\n", ct.Label())
	PrintSeparator()
	PrintKeyValue("締結日", signedAt.Format(deadline.DateLayout), 12)
	PrintKeyValue("祝日登録数", fmt.Sprintf("%d", calc.Calendar().Len()), 12)
	if d.ReinsRequiredBy == nil {
		PrintKeyValue("レインズ期限", "なし", 12)
	} else {
		remaining := calc.RemainingBusinessDays(*d.ReinsRequiredBy)
		PrintKeyValue("レインズ期限", d.ReinsRequiredBy.Format(deadline.DateLayout), 12)
		PrintKeyValue("残り営業日", fmt.Sprintf("%d", remaining), 12)
		if calc.IsReinsOverdue(*d.ReinsRequiredBy) {
			PrintWarning("レインズ登録期限を過ぎています")
		}
	}
	if d.NextReportDate == nil {
		PrintKeyValue("報告義務", "なし", 12)
	} else {
		PrintKeyValue("報告間隔", fmt.Sprintf("%d日", d.ReportIntervalDays), 12)
		PrintKeyValue("初回報告日", d.NextReportDate.Format(deadline.DateLayout), 12)
	}
	return nil
}
