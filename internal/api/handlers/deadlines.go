package handlers

import (
	"net/http"

	"github.com/c21-japan/homemart-sub002/internal/deadline"
)

// DeadlineHandler previews the statutory dates of a prospective agreement
type DeadlineHandler struct {
	calc *deadline.Calculator
}

// NewDeadlineHandler creates a new deadline handler
func NewDeadlineHandler(calc *deadline.Calculator) *DeadlineHandler {
	return &DeadlineHandler{calc: calc}
}

// PreviewResponse is the computed schedule of one contract
type PreviewResponse struct {
	ContractType          deadline.ContractType `json:"contractType"`
	Label                 string                `json:"label"`
	SignedAt              string                `json:"signedAt"`
	ReinsRequiredBy       *string               `json:"reinsRequiredBy"`
	ReportIntervalDays    int                   `json:"reportIntervalDays"`
	NextReportDate        *string               `json:"nextReportDate"`
	RemainingBusinessDays *int                  `json:"remainingBusinessDays"`
	ReinsOverdue          bool                  `json:"reinsOverdue"`
}

// Preview computes the dates without storing anything
// GET /api/deadlines/preview?signedAt=2024-01-01&contractType=exclusive_right
func (h *DeadlineHandler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ct, err := deadline.ParseContractType(q.Get("contractType"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "contractType must be one of exclusive_right, exclusive, general")
		return
	}
	signedAt, err := deadline.ParseDate(q.Get("signedAt"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "signedAt must be YYYY-MM-DD")
		return
	}

	d := h.calc.Derive(signedAt, ct)
	resp := PreviewResponse{
		ContractType:       ct,
		Label:              ct.Label(),
		SignedAt:           signedAt.Format(deadline.DateLayout),
		ReportIntervalDays: d.ReportIntervalDays,
	}
	if d.ReinsRequiredBy != nil {
		s := d.ReinsRequiredBy.Format(deadline.DateLayout)
		remaining := h.calc.RemainingBusinessDays(*d.ReinsRequiredBy)
		resp.ReinsRequiredBy = &s
		resp.RemainingBusinessDays = &remaining
		resp.ReinsOverdue = h.calc.IsReinsOverdue(*d.ReinsRequiredBy)
	}
	if d.NextReportDate != nil {
		s := d.NextReportDate.Format(deadline.DateLayout)
		resp.NextReportDate = &s
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    resp,
	})
}
