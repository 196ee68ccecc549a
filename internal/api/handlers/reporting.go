package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c21-japan/homemart-sub002/internal/auth"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/internal/notify"
	"github.com/c21-japan/homemart-sub002/internal/reporting"
	"github.com/c21-japan/homemart-sub002/internal/scheduler"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

// BatchRunner runs the report batch
type BatchRunner interface {
	Run(ctx context.Context, asOf time.Time) (*reporting.BatchResult, error)
}

// TaskRunner runs a named job once
type TaskRunner interface {
	RunNow(ctx context.Context, jobName string) (scheduler.JobResult, error)
}

// TaskReports is the report batch as a manual task name
const TaskReports = "reports"

// ManualTasks lists the task names accepted by the manual trigger, besides "all"
var ManualTasks = []string{TaskReports, notify.TaskReminders, notify.TaskAlerts, notify.TaskTeam, notify.TaskReform}

// ReportingHandler serves the cron trigger endpoints
// ⭐ SSOT: trigger endpoints check CRON_SECRET here and nowhere else
type ReportingHandler struct {
	runner     BatchRunner
	tasks      TaskRunner
	cronSecret string
	logger     *logger.Logger
}

// NewReportingHandler creates a new reporting handler
func NewReportingHandler(runner BatchRunner, tasks TaskRunner, cronSecret string, log *logger.Logger) *ReportingHandler {
	return &ReportingHandler{
		runner:     runner,
		tasks:      tasks,
		cronSecret: cronSecret,
		logger:     log,
	}
}

func (h *ReportingHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if err := auth.CheckTriggerSecret(r, h.cronSecret); err != nil {
		h.logger.WithField("path", r.URL.Path).Warn("Rejected trigger without valid secret")
		respondError(w, http.StatusUnauthorized, "認証が必要です")
		return false
	}
	return true
}

// RunReports runs the daily report batch
// GET|POST /api/reporting/runner?asOf=2024-01-08
func (h *ReportingHandler) RunReports(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var asOf time.Time
	if s := r.URL.Query().Get("asOf"); s != "" {
		d, err := deadline.ParseDate(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "asOf must be YYYY-MM-DD")
			return
		}
		asOf = d
	}

	result, err := h.runner.Run(r.Context(), asOf)
	if errors.Is(err, reporting.ErrBatchInProgress) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if errors.Is(err, reporting.ErrFutureAsOf) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Report batch failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	message := "自動報告送信処理完了"
	if result.Processed == 0 {
		message = "送付対象なし"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      message,
		"asOf":         result.AsOf,
		"processed":    result.Processed,
		"successCount": result.Succeeded,
		"errors":       result.Failed,
		"skipped":      result.Skipped,
	})
}

// TaskRequest selects a manual task
type TaskRequest struct {
	Task string `json:"task"`
}

// RunTask runs one task, or every task concurrently for "all"
// POST /api/cron/daily-tasks {"task": "alerts"}
func (h *ReportingHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var req TaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var names []string
	switch {
	case req.Task == "all":
		names = ManualTasks
	case isManualTask(req.Task):
		names = []string{req.Task}
	default:
		respondError(w, http.StatusBadRequest, "無効なタスクが指定されました")
		return
	}

	results, err := h.runTasks(r.Context(), names)
	if err != nil {
		h.respondTaskError(w, req.Task, results, err)
		return
	}

	var result interface{} = results
	if req.Task != "all" {
		result = results[req.Task]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"task":    req.Task,
		"result":  result,
	})
}

// RunDaily runs the daily reminders and alerts
// GET /api/cron/daily-tasks
func (h *ReportingHandler) RunDaily(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	results := make(map[string]scheduler.Outcome, 2)
	for _, name := range []string{notify.TaskReminders, notify.TaskAlerts} {
		res, err := h.tasks.RunNow(r.Context(), name)
		if err != nil {
			h.respondTaskError(w, name, results, err)
			return
		}
		results[name] = res.Outcome
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "定期実行タスクが完了しました",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"result":    results,
	})
}

// runTasks runs the named tasks concurrently. They write disjoint tables.
func (h *ReportingHandler) runTasks(ctx context.Context, names []string) (map[string]scheduler.Outcome, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]scheduler.Outcome, len(names))
		g       errgroup.Group
	)

	for _, name := range names {
		name := name
		g.Go(func() error {
			res, err := h.tasks.RunNow(ctx, name)
			mu.Lock()
			results[name] = res.Outcome
			mu.Unlock()
			return err
		})
	}

	err := g.Wait()
	return results, err
}

func (h *ReportingHandler) respondTaskError(w http.ResponseWriter, task string, results map[string]scheduler.Outcome, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, reporting.ErrBatchInProgress) {
		status = http.StatusConflict
	}

	h.logger.WithError(err).WithField("task", task).Error("Manual task failed")
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"task":    task,
		"error":   err.Error(),
		"result":  results,
	})
}

func isManualTask(name string) bool {
	for _, t := range ManualTasks {
		if t == name {
			return true
		}
	}
	return false
}
