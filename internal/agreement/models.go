package agreement

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c21-japan/homemart-sub002/internal/deadline"
)

// Status is the lifecycle state of a listing agreement
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// ParseStatus validates a status string
func ParseStatus(s string) (Status, error) {
	switch Status(strings.TrimSpace(s)) {
	case StatusActive:
		return StatusActive, nil
	case StatusSuspended:
		return StatusSuspended, nil
	case StatusClosed:
		return StatusClosed, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Agreement is a listing agreement row. ReinsRequiredBy, ReportIntervalDays and
// NextReportDate are derived from (ContractType, SignedAt) by the deadline rules;
// nil dates mean the contract type carries no obligation.
type Agreement struct {
	ID                 uuid.UUID
	LeadID             uuid.UUID
	PropertyID         *uuid.UUID
	ContractType       deadline.ContractType
	SignedAt           time.Time
	ReinsRequiredBy    *time.Time
	ReinsRegisteredAt  *time.Time
	ReportIntervalDays int
	NextReportDate     *time.Time
	LastReportSentAt   *time.Time
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ApplyDerived copies computed fields onto the agreement
func (a *Agreement) ApplyDerived(d deadline.Derived) {
	a.ReinsRequiredBy = d.ReinsRequiredBy
	a.ReportIntervalDays = d.ReportIntervalDays
	a.NextReportDate = d.NextReportDate
}

type agreementJSON struct {
	ID                 uuid.UUID             `json:"id"`
	LeadID             uuid.UUID             `json:"lead_id"`
	PropertyID         *uuid.UUID            `json:"property_id,omitempty"`
	ContractType       deadline.ContractType `json:"contract_type"`
	ContractTypeLabel  string                `json:"contract_type_label"`
	SignedAt           string                `json:"signed_at"`
	ReinsRequiredBy    *string               `json:"reins_required_by"`
	ReinsRegisteredAt  *string               `json:"reins_registered_at"`
	ReportIntervalDays int                   `json:"report_interval_days"`
	NextReportDate     *string               `json:"next_report_date"`
	LastReportSentAt   *time.Time            `json:"last_report_sent_at"`
	Status             Status                `json:"status"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func formatDate(d *time.Time) *string {
	if d == nil {
		return nil
	}
	s := d.Format(deadline.DateLayout)
	return &s
}

// MarshalJSON renders civil dates as YYYY-MM-DD
func (a Agreement) MarshalJSON() ([]byte, error) {
	return json.Marshal(agreementJSON{
		ID:                 a.ID,
		LeadID:             a.LeadID,
		PropertyID:         a.PropertyID,
		ContractType:       a.ContractType,
		ContractTypeLabel:  a.ContractType.Label(),
		SignedAt:           a.SignedAt.Format(deadline.DateLayout),
		ReinsRequiredBy:    formatDate(a.ReinsRequiredBy),
		ReinsRegisteredAt:  formatDate(a.ReinsRegisteredAt),
		ReportIntervalDays: a.ReportIntervalDays,
		NextReportDate:     formatDate(a.NextReportDate),
		LastReportSentAt:   a.LastReportSentAt,
		Status:             a.Status,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	})
}

// Lead holds the contact fields of the customer a report is addressed to
type Lead struct {
	ID         uuid.UUID `json:"id"`
	LastName   string    `json:"last_name"`
	FirstName  string    `json:"first_name"`
	Email      string    `json:"email,omitempty"`
	AssignedTo string    `json:"-"`
	Property   Property  `json:"property"`
}

// Property is the listing detail kept in customer_leads.extra
type Property struct {
	BuildingName string `json:"building_name,omitempty"`
	RoomNo       string `json:"room_no,omitempty"`
	// Listed price in yen, 0 when not yet decided
	ExpectedPrice int64 `json:"expected_price,omitempty"`
}

// ParseProperty reads the listing detail from a lead's extra JSON.
// Missing or malformed values are left empty.
func ParseProperty(raw []byte) Property {
	var extra map[string]interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &extra) != nil {
		return Property{}
	}

	p := Property{
		BuildingName: stringField(extra["building_name"]),
		RoomNo:       stringField(extra["room_no"]),
	}
	switch v := extra["expected_price"].(type) {
	case float64:
		if v > 0 {
			p.ExpectedPrice = int64(v)
		}
	case string:
		n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 10, 64)
		if err == nil && n > 0 {
			p.ExpectedPrice = n
		}
	}
	return p
}

func stringField(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

// FullName is family name followed by given name, as addressed in Japanese mail
func (l Lead) FullName() string {
	return l.LastName + l.FirstName
}

// DueAgreement is an agreement joined with the lead contact needed for rendering
type DueAgreement struct {
	Agreement
	Lead Lead
}

// MarshalJSON nests the lead under "lead"
func (d DueAgreement) MarshalJSON() ([]byte, error) {
	a, err := json.Marshal(d.Agreement)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(a, &m); err != nil {
		return nil, err
	}
	lead, err := json.Marshal(d.Lead)
	if err != nil {
		return nil, err
	}
	m["lead"] = lead
	return json.Marshal(m)
}

// Stats are the dashboard counters over active agreements
type Stats struct {
	AsOf         string                        `json:"asOf"`
	Total        int                           `json:"total"`
	ByType       map[deadline.ContractType]int `json:"byType"`
	DueReports   int                           `json:"dueReports"`
	ReinsOverdue int                           `json:"reinsOverdue"`
}

// CreateInput is the payload of a new agreement
type CreateInput struct {
	LeadID       string `json:"lead_id"`
	ContractType string `json:"contract_type"`
	SignedAt     string `json:"signed_at"`
	PropertyID   string `json:"property_id,omitempty"`
}

// UpdateInput is a partial update; nil fields are left unchanged
type UpdateInput struct {
	ContractType      *string `json:"contract_type,omitempty"`
	SignedAt          *string `json:"signed_at,omitempty"`
	ReinsRegisteredAt *string `json:"reins_registered_at,omitempty"`
	Status            *string `json:"status,omitempty"`
}
