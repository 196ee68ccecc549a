package deadline

import (
	"errors"
	"fmt"
	"strings"
)

// ContractType is the statutory kind of a listing agreement
type ContractType string

const (
	// ExclusiveRight (専属専任媒介): registration within 5 business days, weekly reports
	ExclusiveRight ContractType = "exclusive_right"
	// Exclusive (専任媒介): registration within 7 business days, biweekly reports
	Exclusive ContractType = "exclusive"
	// General (一般媒介): no registration or reporting obligation
	General ContractType = "general"
)

// ErrInvalidContractType is returned for values outside the three statutory kinds
var ErrInvalidContractType = errors.New("invalid contract type")

// ContractTypes lists every valid kind in statutory order
var ContractTypes = []ContractType{ExclusiveRight, Exclusive, General}

// ParseContractType accepts the storage code, the upper-case enum name or the
// Japanese label used by office staff.
func ParseContractType(s string) (ContractType, error) {
	switch strings.TrimSpace(s) {
	case "exclusive_right", "EXCLUSIVE_RIGHT", "専属専任", "専属専任媒介":
		return ExclusiveRight, nil
	case "exclusive", "EXCLUSIVE", "専任", "専任媒介":
		return Exclusive, nil
	case "general", "GENERAL", "一般", "一般媒介":
		return General, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidContractType, s)
}

// Valid reports whether t is one of the statutory kinds
func (t ContractType) Valid() bool {
	switch t {
	case ExclusiveRight, Exclusive, General:
		return true
	}
	return false
}

// Label is the short Japanese name shown to sellers
func (t ContractType) Label() string {
	switch t {
	case ExclusiveRight:
		return "専属専任"
	case Exclusive:
		return "専任"
	default:
		return "一般"
	}
}

// FrequencyLabel describes the reporting cadence in Japanese
func (t ContractType) FrequencyLabel() string {
	switch t {
	case ExclusiveRight:
		return "週1回"
	case Exclusive:
		return "2週に1回"
	default:
		return "任意"
	}
}

// ReinsBusinessDays is the registration window, 0 when none applies
func (t ContractType) ReinsBusinessDays() int {
	switch t {
	case ExclusiveRight:
		return 5
	case Exclusive:
		return 7
	default:
		return 0
	}
}

// ReportIntervalDays returns 7 for ExclusiveRight, 14 for Exclusive and 0
// (no periodic obligation) for General.
func ReportIntervalDays(t ContractType) int {
	switch t {
	case ExclusiveRight:
		return 7
	case Exclusive:
		return 14
	default:
		return 0
	}
}
