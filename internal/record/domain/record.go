package domain

import (
	"fmt"
	"time"
)

// SpendType classifies what an expenditure paid for.
type SpendType string

const (
	SpendPersonal SpendType = "PERSONAL"
	SpendObra     SpendType = "OBRA"
	SpendServicio SpendType = "SERVICIO"
	SpendSubsidio SpendType = "SUBSIDIO"
	SpendOtro     SpendType = "OTRO"
)

// SpendTypes lists every spend type, in enum order.
var SpendTypes = []SpendType{SpendPersonal, SpendObra, SpendServicio, SpendSubsidio, SpendOtro}

// ParseSpendType validates s against the closed spend-type set.
func ParseSpendType(s string) (SpendType, error) {
	switch SpendType(s) {
	case SpendPersonal, SpendObra, SpendServicio, SpendSubsidio, SpendOtro:
		return SpendType(s), nil
	default:
		return "", fmt.Errorf("unknown spend type %q", s)
	}
}

// Status is the approval state of a record. PENDIENTE is the initial state;
// VALIDADO and OBSERVADO are both terminal.
type Status string

const (
	StatusPendiente Status = "PENDIENTE"
	StatusValidado  Status = "VALIDADO"
	StatusObservado Status = "OBSERVADO"
)

// Statuses lists every record status, in lifecycle order.
var Statuses = []Status{StatusPendiente, StatusValidado, StatusObservado}

// ParseStatus validates s against the closed status set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPendiente, StatusValidado, StatusObservado:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown record status %q", s)
	}
}

// Record is one audited expenditure. RecordHash is computed once at creation
// over the content fields and never rewritten; OnChainID is a monotonic
// sequence position assigned by the store at insert.
type Record struct {
	ID                string
	OnChainID         int64
	RecordHash        string
	MunicipalityID    string
	SpendType         SpendType
	Amount            string // fixed-point decimal, 2 fractional digits
	Currency          string
	Description       string
	ExpenseDate       string // YYYY-MM-DD
	RecordedAt        time.Time
	ManagementPeriod  string
	Status            Status
	ValidatorID       *string
	ObservationReason *string
	DocumentCID       *string
	TxHash            string
	Metadata          map[string]any
}

// HashPayload assembles the canonical-hash input from the record's content
// fields. Lifecycle fields (status, validator, document) are deliberately
// excluded: the hash fingerprints what was declared, not what happened to it.
func (r *Record) HashPayload() map[string]any {
	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"municipality_id":   r.MunicipalityID,
		"spend_type":        string(r.SpendType),
		"amount":            r.Amount,
		"currency":          r.Currency,
		"description":       r.Description,
		"expense_date":      r.ExpenseDate,
		"management_period": r.ManagementPeriod,
		"metadata":          metadata,
	}
}
