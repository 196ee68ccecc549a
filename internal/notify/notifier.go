// Package notify sends the internal staff notifications: REINS deadline
// alerts, checklist reminders and completions, and the weekly team digest.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/internal/email"
	"github.com/c21-japan/homemart-sub002/internal/scheduler"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
	"github.com/c21-japan/homemart-sub002/pkg/metrics"
)

// Task names, shared by the scheduler jobs and the manual trigger
const (
	TaskAlerts    = "alerts"
	TaskReminders = "reminders"
	TaskReform    = "reform"
	TaskTeam      = "team"
)

// taskChecklistCompletion labels completion mail in metrics and logs. It is
// triggered per checklist, never scheduled.
const taskChecklistCompletion = "checklist_completion"

// ErrNotSent is returned when a requested notification could not be mailed
var ErrNotSent = errors.New("notification not sent")

// Store is the persistence the notifier needs
type Store interface {
	PendingRegistrations(ctx context.Context, before time.Time) ([]PendingRegistration, error)
	StaleChecklists(ctx context.Context, types []ChecklistType, progressBelow int, updatedBefore time.Time) ([]Checklist, error)
	ChecklistByID(ctx context.Context, id uuid.UUID) (*Checklist, error)
	TeamLoad(ctx context.Context, today, registrationsBefore time.Time) ([]AssigneeLoad, error)
	InsertLog(ctx context.Context, e LogEntry) error
}

// Options configures the notifier
type Options struct {
	OfficeAddress   string
	SiteBaseURL     string
	AlertWindowDays int
	StaleDays       int
	ProgressBelow   int
}

// Notifier sends internal notifications
type Notifier struct {
	store     Store
	sender    email.Sender
	publisher Publisher
	calc      *deadline.Calculator
	opts      Options
	logger    *logger.Logger
}

// NewNotifier creates a notifier. publisher may be nil.
func NewNotifier(store Store, sender email.Sender, publisher Publisher, calc *deadline.Calculator, opts Options, log *logger.Logger) *Notifier {
	if opts.AlertWindowDays <= 0 {
		opts.AlertWindowDays = 7
	}
	if opts.StaleDays <= 0 {
		opts.StaleDays = 7
	}
	if opts.ProgressBelow <= 0 {
		opts.ProgressBelow = 50
	}
	return &Notifier{
		store:     store,
		sender:    sender,
		publisher: publisher,
		calc:      calc,
		opts:      opts,
		logger:    log,
	}
}

// Alerts warns the office (and the assignee) about every unregistered
// agreement whose REINS deadline is within the alert window or already past
func (n *Notifier) Alerts(ctx context.Context) (scheduler.Outcome, error) {
	today := n.calc.Today()
	pending, err := n.store.PendingRegistrations(ctx, deadline.AddDays(today, n.opts.AlertWindowDays))
	if err != nil {
		return scheduler.Outcome{}, err
	}

	var out scheduler.Outcome
	for _, p := range pending {
		out.Processed++

		remaining := n.calc.RemainingBusinessDays(p.ReinsRequiredBy)
		subject := fmt.Sprintf("【緊急】%s様のレインズ登録期限が迫っています", p.Lead.FullName())

		var b strings.Builder
		fmt.Fprintf(&b, "%s様のレインズ登録期限が迫っています。\n\n", p.Lead.FullName())
		b.WriteString("【緊急事項】\n")
		fmt.Fprintf(&b, "顧客名: %s\n", p.Lead.FullName())
		fmt.Fprintf(&b, "契約種別: %s\n", p.ContractType.Label())
		fmt.Fprintf(&b, "レインズ登録期限: %s\n", deadline.FormatJP(p.ReinsRequiredBy))
		if remaining < 0 {
			fmt.Fprintf(&b, "状態: 期限超過（%d営業日）\n\n", -remaining)
		} else {
			fmt.Fprintf(&b, "残り営業日: %d日\n\n", remaining)
		}
		b.WriteString("早急にレインズへの登録を行ってください。\n\n")
		b.WriteString(n.adminLink(p.Lead))

		if n.deliver(ctx, TaskAlerts, TypeDeadlineAlert, p.AgreementID.String(), p.Lead, subject, b.String()) {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}

	return out, nil
}

// Reminders nudges staff about seller and buyer checklists that stalled
func (n *Notifier) Reminders(ctx context.Context) (scheduler.Outcome, error) {
	return n.checklistReminders(ctx, TaskReminders, TypeIncompleteReminder, []ChecklistType{ChecklistSeller, ChecklistBuyer})
}

// Reform applies the reminder rule to reform checklists
func (n *Notifier) Reform(ctx context.Context) (scheduler.Outcome, error) {
	return n.checklistReminders(ctx, TaskReform, TypeReformReminder, []ChecklistType{ChecklistReform})
}

func (n *Notifier) checklistReminders(ctx context.Context, task, logType string, types []ChecklistType) (scheduler.Outcome, error) {
	now := n.calc.Now()
	cutoff := now.Add(-time.Duration(n.opts.StaleDays) * 24 * time.Hour)

	stale, err := n.store.StaleChecklists(ctx, types, n.opts.ProgressBelow, cutoff)
	if err != nil {
		return scheduler.Outcome{}, err
	}

	var out scheduler.Outcome
	for _, c := range stale {
		out.Processed++

		daysSince := int(now.Sub(c.UpdatedAt) / (24 * time.Hour))
		label := c.Type.Label()
		subject := fmt.Sprintf("【リマインド】%s様の%sチェックリストが停滞しています", c.Lead.FullName(), label)

		var b strings.Builder
		fmt.Fprintf(&b, "%s様の%sチェックリストが停滞しています。\n\n", c.Lead.FullName(), label)
		b.WriteString("【現在の状況】\n")
		fmt.Fprintf(&b, "顧客名: %s\n", c.Lead.FullName())
		fmt.Fprintf(&b, "チェックリスト種別: %s\n", label)
		fmt.Fprintf(&b, "進捗率: %d%%\n", c.Progress)
		fmt.Fprintf(&b, "完了項目数: %d/%d\n", c.CompletedItems, c.TotalItems)
		fmt.Fprintf(&b, "最後の更新: %s（%d日前）\n\n", deadline.FormatJP(n.calc.CivilDate(c.UpdatedAt)), daysSince)
		b.WriteString("早急な対応をお願いします。\n\n")
		b.WriteString(n.adminLink(c.Lead))

		if n.deliver(ctx, task, logType, c.ID.String(), c.Lead, subject, b.String()) {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}

	return out, nil
}

// ChecklistCompleted tells the office and the assignee that a checklist
// reached 100%. It reports whether a notification was sent; an unfinished
// checklist is left alone.
func (n *Notifier) ChecklistCompleted(ctx context.Context, checklistID uuid.UUID) (bool, error) {
	c, err := n.store.ChecklistByID(ctx, checklistID)
	if err != nil {
		return false, err
	}
	if c.Progress != CompleteProgress {
		n.logger.WithFields(map[string]interface{}{
			"checklist_id": checklistID.String(),
			"progress":     c.Progress,
		}).Debug("checklist not complete, no notification")
		return false, nil
	}

	label := c.Type.Label()
	subject := fmt.Sprintf("【完了通知】%s様の%sチェックリストが完了しました", c.Lead.FullName(), label)

	var b strings.Builder
	fmt.Fprintf(&b, "%s様の%sチェックリストが100%%完了しました。\n\n", c.Lead.FullName(), label)
	b.WriteString("【完了情報】\n")
	fmt.Fprintf(&b, "顧客名: %s\n", c.Lead.FullName())
	fmt.Fprintf(&b, "チェックリスト種別: %s\n", label)
	fmt.Fprintf(&b, "完了日時: %s\n", deadline.FormatJP(n.calc.CivilDate(c.UpdatedAt)))
	fmt.Fprintf(&b, "完了項目数: %d/%d\n\n", c.CompletedItems, c.TotalItems)
	b.WriteString(n.adminLink(c.Lead))
	b.WriteString("\n\n次のステップの準備をお願いします。")

	if !n.deliver(ctx, taskChecklistCompletion, TypeChecklistCompletion, c.ID.String(), c.Lead, subject, b.String()) {
		return false, fmt.Errorf("%w: checklist %s", ErrNotSent, checklistID)
	}
	return true, nil
}

// TeamDigest mails the office one summary of overdue reports and pending
// registrations per assignee. Nothing is sent when every queue is empty.
func (n *Notifier) TeamDigest(ctx context.Context) (scheduler.Outcome, error) {
	today := n.calc.Today()
	loads, err := n.store.TeamLoad(ctx, today, deadline.AddDays(today, n.opts.AlertWindowDays))
	if err != nil {
		return scheduler.Outcome{}, err
	}
	if len(loads) == 0 {
		n.logger.Info("team digest skipped, nothing outstanding")
		return scheduler.Outcome{}, nil
	}

	subject := fmt.Sprintf("【週次】担当者別 対応状況（%s）", deadline.FormatJP(today))

	var b strings.Builder
	b.WriteString("担当者別の未対応件数です。\n\n")
	for _, l := range loads {
		name := l.Assignee
		if name == "" {
			name = "未割当"
		}
		fmt.Fprintf(&b, "・%s: 報告遅延 %d件／レインズ未登録 %d件\n", name, l.OverdueReports, l.PendingRegistrations)
	}
	fmt.Fprintf(&b, "\n管理画面で詳細を確認:\n%s/admin/agreements", n.opts.SiteBaseURL)

	out := scheduler.Outcome{Processed: 1}
	if n.deliver(ctx, TaskTeam, TypeTeamDigest, today.Format(deadline.DateLayout), agreement.Lead{}, subject, b.String()) {
		out.Succeeded = 1
	} else {
		out.Failed = 1
	}
	return out, nil
}

func (n *Notifier) adminLink(lead agreement.Lead) string {
	return fmt.Sprintf("管理画面で詳細を確認:\n%s/admin/leads/%s", n.opts.SiteBaseURL, lead.ID)
}

// recipients is the office mailbox plus the assignee when assigned_to holds an address
func (n *Notifier) recipients(lead agreement.Lead) []string {
	addrs := []string{n.opts.OfficeAddress}
	if email.IsValidEmail(lead.AssignedTo) {
		addrs = append(addrs, lead.AssignedTo)
	}
	return email.Dedupe(addrs...)
}

// deliver sends one notification, publishes alerts to SNS and writes the log
// row. It reports whether the mail went out.
func (n *Notifier) deliver(ctx context.Context, task, logType, ref string, lead agreement.Lead, subject, content string) bool {
	log := n.logger.WithFields(map[string]interface{}{
		"task":         task,
		"reference_id": ref,
	})
	to := n.recipients(lead)

	if err := n.sender.Send(ctx, email.Message{To: to, Subject: subject, Body: content}); err != nil {
		log.WithError(err).Error("notification send failed")
		metrics.NotificationsSent.WithLabelValues(task, "failure").Inc()
		return false
	}
	metrics.NotificationsSent.WithLabelValues(task, "success").Inc()

	if n.publisher != nil && logType == TypeDeadlineAlert {
		if err := n.publisher.Publish(ctx, subject, content); err != nil {
			log.WithError(err).Warn("alert publish failed")
		}
	}

	if err := n.store.InsertLog(ctx, LogEntry{
		Type:        logType,
		ReferenceID: ref,
		Subject:     subject,
		Content:     content,
		Recipients:  to,
		SentAt:      n.calc.Now(),
	}); err != nil {
		log.WithError(err).Error("failed to write notification log")
	}

	log.Info("notification sent")
	return true
}
