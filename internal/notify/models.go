package notify

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
)

// Notification types stored in notification_logs.type
const (
	TypeDeadlineAlert       = "deadline_alert"
	TypeIncompleteReminder  = "incomplete_reminder"
	TypeReformReminder      = "reform_reminder"
	TypeTeamDigest          = "team_digest"
	TypeChecklistCompletion = "checklist_completion"
)

// CompleteProgress is the progress_percentage of a finished checklist
const CompleteProgress = 100

// ErrChecklistNotFound is returned when no checklist has the requested id
var ErrChecklistNotFound = errors.New("checklist not found")

// ChecklistType is the kind of customer checklist
type ChecklistType string

const (
	ChecklistSeller ChecklistType = "seller"
	ChecklistBuyer  ChecklistType = "buyer"
	ChecklistReform ChecklistType = "reform"
)

// Label is the Japanese name used in staff mail
func (t ChecklistType) Label() string {
	switch t {
	case ChecklistSeller:
		return "売主"
	case ChecklistBuyer:
		return "買主"
	default:
		return "リフォーム"
	}
}

// PendingRegistration is an active agreement not yet registered with REINS
type PendingRegistration struct {
	AgreementID     uuid.UUID
	ContractType    deadline.ContractType
	ReinsRequiredBy time.Time
	Lead            agreement.Lead
}

// Checklist is a customer checklist with its lead
type Checklist struct {
	ID             uuid.UUID
	Type           ChecklistType
	Progress       int
	CompletedItems int
	TotalItems     int
	UpdatedAt      time.Time
	Lead           agreement.Lead
}

// AssigneeLoad is one line of the team digest
type AssigneeLoad struct {
	Assignee             string `json:"assignee"`
	OverdueReports       int    `json:"overdueReports"`
	PendingRegistrations int    `json:"pendingRegistrations"`
}

// LogEntry is one notification_logs row
type LogEntry struct {
	Type        string
	ReferenceID string
	Subject     string
	Content     string
	Recipients  []string
	SentAt      time.Time
}
