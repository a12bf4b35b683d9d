package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"chain-audit/backend/internal/anchor"
	anchordomain "chain-audit/backend/internal/anchor/domain"
	munidomain "chain-audit/backend/internal/municipality/domain"
	"chain-audit/backend/internal/record/domain"
	"chain-audit/backend/internal/record/repository"
	"chain-audit/backend/internal/security"
	validatordomain "chain-audit/backend/internal/validator/domain"
)

// Sentinel errors for the ledger; handlers map them to HTTP codes.
var (
	ErrInvalidPayload = errors.New("invalid record payload")
	ErrMissingReason  = errors.New("observation reason is required")
	ErrMissingCID     = errors.New("document cid is required")
	ErrForbidden      = errors.New("record belongs to another municipality")
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidStatus  = errors.New("record is not in PENDIENTE status")
)

// Outcome selects the terminal state a transition drives the record into.
type Outcome string

const (
	OutcomeValidate Outcome = "validate"
	OutcomeObserve  Outcome = "observe"
)

// CreateInput carries the content fields of a new audit record.
type CreateInput struct {
	SpendType        string
	Amount           float64
	Currency         string
	Description      string
	ExpenseDate      string // YYYY-MM-DD
	ManagementPeriod string
	Metadata         map[string]any
}

// IntegrityReport is the result of recomputing a record's canonical hash
// against the one stored at creation time. A mismatch is a tamper signal;
// the ledger reports it and never corrects.
type IntegrityReport struct {
	RecordID     string
	Match        bool
	StoredHash   string
	ComputedHash string
}

// RecordRepo is the record repository contract needed by the ledger.
type RecordRepo interface {
	Create(ctx context.Context, rec *domain.Record) error
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	List(ctx context.Context, f repository.ListFilters) ([]*domain.Record, int64, error)
	AttachDocument(ctx context.Context, id, cid string) (*domain.Record, error)
	Transition(ctx context.Context, id, validatorID string, status domain.Status, reason *string) (*domain.Record, error)
}

// Ledger owns the audit-record lifecycle: creation with hash binding,
// document attachment, the PENDIENTE → {VALIDADO, OBSERVADO} state machine,
// and integrity verification. Actor authorization happens upstream (API key
// for create/attach, challenge-response for transitions).
type Ledger struct {
	records RecordRepo
	anchors anchor.EventEmitter // may be nil
}

// NewLedger returns a Ledger using the given record repository. anchors may
// be nil to disable the anchor feed.
func NewLedger(records RecordRepo, anchors anchor.EventEmitter) *Ledger {
	return &Ledger{records: records, anchors: anchors}
}

// Create validates the payload, computes the canonical record hash bound to
// the owning municipality, and persists the record in PENDIENTE status. The
// store assigns the monotonic on_chain_id.
func (l *Ledger) Create(ctx context.Context, municipality *munidomain.Municipality, in CreateInput) (*domain.Record, error) {
	spendType, err := domain.ParseSpendType(in.SpendType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidPayload)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidPayload)
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidPayload)
	}
	if _, err := time.Parse("2006-01-02", in.ExpenseDate); err != nil {
		return nil, fmt.Errorf("%w: expense_date must be YYYY-MM-DD", ErrInvalidPayload)
	}
	period := strings.TrimSpace(in.ManagementPeriod)
	if period == "" {
		return nil, fmt.Errorf("%w: management_period is required", ErrInvalidPayload)
	}
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	rec := &domain.Record{
		ID:               uuid.New().String(),
		MunicipalityID:   municipality.ID,
		SpendType:        spendType,
		Amount:           strconv.FormatFloat(in.Amount, 'f', 2, 64),
		Currency:         currency,
		Description:      description,
		ExpenseDate:      in.ExpenseDate,
		ManagementPeriod: period,
		Status:           domain.StatusPendiente,
		TxHash:           newTxHash(),
		Metadata:         metadata,
	}
	hash, err := security.CanonicalHash(rec.HashPayload())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	rec.RecordHash = hash

	if err := l.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	l.emit(ctx, anchordomain.EventRecordCreated, rec, "")
	return rec, nil
}

// Get returns the record for id.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.Record, error) {
	rec, err := l.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

// List returns one page of the public ledger plus the total count. Page and
// limit are clamped (limit max 100, default 20).
func (l *Ledger) List(ctx context.Context, f repository.ListFilters) ([]*domain.Record, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return l.records.List(ctx, f)
}

// AttachDocument sets the opaque document cid on a record owned by the
// calling municipality. Attachment is independent of the approval state
// machine and is permitted in any status.
func (l *Ledger) AttachDocument(ctx context.Context, municipality *munidomain.Municipality, recordID, cid string) (*domain.Record, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return nil, ErrMissingCID
	}
	rec, err := l.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	if rec.MunicipalityID != municipality.ID {
		return nil, ErrForbidden
	}
	updated, err := l.records.AttachDocument(ctx, recordID, cid)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrRecordNotFound
	}
	return updated, nil
}

// CheckTransitionInput validates the structural part of a transition request
// without touching any state. Callers run it before consuming the caller's
// challenge so a request that could never succeed does not burn a nonce.
func CheckTransitionInput(outcome Outcome, reason string) error {
	if outcome == OutcomeObserve && strings.TrimSpace(reason) == "" {
		return ErrMissingReason
	}
	return nil
}

// Transition moves a PENDIENTE record to VALIDADO or OBSERVADO on behalf of
// validator. Both outcomes are terminal: any later transition attempt fails
// with ErrInvalidStatus, including idempotent re-validation.
//
// Structural validation (the observe reason) comes before everything else,
// so a missing reason never consumes state anywhere. The repository
// re-checks the PENDIENTE precondition inside its transaction; a lost race
// surfaces as ErrInvalidStatus, never as silent success.
func (l *Ledger) Transition(ctx context.Context, recordID string, validator *validatordomain.Validator, outcome Outcome, reason string) (*domain.Record, error) {
	reason = strings.TrimSpace(reason)

	var status domain.Status
	var reasonPtr *string
	switch outcome {
	case OutcomeValidate:
		// observation_reason is cleared by writing NULL.
		status = domain.StatusValidado
	case OutcomeObserve:
		if reason == "" {
			return nil, ErrMissingReason
		}
		status = domain.StatusObservado
		reasonPtr = &reason
	default:
		return nil, fmt.Errorf("unknown transition outcome %q", outcome)
	}

	current, err := l.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrRecordNotFound
	}
	if current.Status != domain.StatusPendiente {
		return nil, ErrInvalidStatus
	}

	updated, err := l.records.Transition(ctx, recordID, validator.ID, status, reasonPtr)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Lost the race: someone else transitioned between the read above
		// and the conditional update.
		return nil, ErrInvalidStatus
	}

	eventType := anchordomain.EventRecordValidated
	if outcome == OutcomeObserve {
		eventType = anchordomain.EventRecordObserved
	}
	l.emit(ctx, eventType, updated, validator.ID)
	return updated, nil
}

// VerifyIntegrity recomputes the canonical hash over the record's current
// content fields and compares it with the hash fixed at creation.
func (l *Ledger) VerifyIntegrity(ctx context.Context, recordID string) (*IntegrityReport, error) {
	rec, err := l.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	computed, err := security.CanonicalHash(rec.HashPayload())
	if err != nil {
		return nil, err
	}
	return &IntegrityReport{
		RecordID:     rec.ID,
		Match:        computed == rec.RecordHash,
		StoredHash:   rec.RecordHash,
		ComputedHash: computed,
	}, nil
}

func (l *Ledger) emit(ctx context.Context, eventType anchordomain.EventType, rec *domain.Record, validatorID string) {
	anchor.EmitAsync(l.anchors, ctx, &anchordomain.Event{
		EventType:      eventType,
		RecordID:       rec.ID,
		OnChainID:      rec.OnChainID,
		RecordHash:     rec.RecordHash,
		TxHash:         rec.TxHash,
		MunicipalityID: rec.MunicipalityID,
		ValidatorID:    validatorID,
		CreatedAt:      time.Now().UTC(),
	})
}

// newTxHash generates the placeholder anchor reference assigned at creation:
// 0x plus the hex of a random UUID.
func newTxHash() string {
	return "0x" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
