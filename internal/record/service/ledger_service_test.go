package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	anchordomain "chain-audit/backend/internal/anchor/domain"
	munidomain "chain-audit/backend/internal/municipality/domain"
	"chain-audit/backend/internal/record/domain"
	"chain-audit/backend/internal/record/repository"
	"chain-audit/backend/internal/security"
	validatordomain "chain-audit/backend/internal/validator/domain"
)

type memRecordRepo struct {
	mu     sync.Mutex
	m      map[string]*domain.Record
	nextID int64
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{m: map[string]*domain.Record{}}
}

func (r *memRecordRepo) Create(ctx context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec.OnChainID = r.nextID
	rec.RecordedAt = time.Now().UTC()
	r2 := *rec
	r.m[rec.ID] = &r2
	return nil
}

func (r *memRecordRepo) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	r2 := *rec
	return &r2, nil
}

func (r *memRecordRepo) List(ctx context.Context, f repository.ListFilters) ([]*domain.Record, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Record
	for _, rec := range r.m {
		if f.MunicipalityID != "" && rec.MunicipalityID != f.MunicipalityID {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		r2 := *rec
		out = append(out, &r2)
	}
	return out, int64(len(out)), nil
}

func (r *memRecordRepo) AttachDocument(ctx context.Context, id, cid string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	rec.DocumentCID = &cid
	r2 := *rec
	return &r2, nil
}

func (r *memRecordRepo) Transition(ctx context.Context, id, validatorID string, status domain.Status, reason *string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.m[id]
	if !ok || rec.Status != domain.StatusPendiente {
		return nil, nil
	}
	rec.Status = status
	rec.ValidatorID = &validatorID
	rec.ObservationReason = reason
	r2 := *rec
	return &r2, nil
}

type memEmitter struct {
	mu     sync.Mutex
	events []*anchordomain.Event
}

func (e *memEmitter) Emit(ctx context.Context, event *anchordomain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

var testMunicipality = &munidomain.Municipality{ID: "muni-1", Name: "Municipio Uno", Active: true}
var testValidator = &validatordomain.Validator{ID: "val-1", Name: "Contraloría", Active: true}

func validInput() CreateInput {
	return CreateInput{
		SpendType:        "OBRA",
		Amount:           150000.5,
		Currency:         "bob",
		Description:      "Pavimentado de la avenida principal",
		ExpenseDate:      "2026-03-15",
		ManagementPeriod: "2026-Q1",
		Metadata:         map[string]any{"contract": "LP-2026-014"},
	}
}

func TestCreate(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	rec, err := ledger.Create(context.Background(), testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != domain.StatusPendiente {
		t.Errorf("status = %q, want PENDIENTE", rec.Status)
	}
	if rec.Amount != "150000.50" {
		t.Errorf("amount = %q, want %q", rec.Amount, "150000.50")
	}
	if rec.Currency != "BOB" {
		t.Errorf("currency = %q, want BOB", rec.Currency)
	}
	if rec.OnChainID != 1 {
		t.Errorf("on_chain_id = %d, want 1", rec.OnChainID)
	}
	if len(rec.RecordHash) != 64 {
		t.Errorf("record hash length = %d, want 64", len(rec.RecordHash))
	}
	if len(rec.TxHash) != 2+32 || rec.TxHash[:2] != "0x" {
		t.Errorf("tx hash %q should be 0x plus 32 hex chars", rec.TxHash)
	}
	if !security.VerifyCanonicalHash(rec.HashPayload(), rec.RecordHash) {
		t.Error("stored hash should verify against the content payload")
	}
}

func TestCreate_InvalidPayload(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	testCases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"unknown spend type", func(in *CreateInput) { in.SpendType = "VIAJES" }},
		{"zero amount", func(in *CreateInput) { in.Amount = 0 }},
		{"negative amount", func(in *CreateInput) { in.Amount = -5 }},
		{"bad currency", func(in *CreateInput) { in.Currency = "BOLIVIANOS" }},
		{"blank description", func(in *CreateInput) { in.Description = "  " }},
		{"bad date", func(in *CreateInput) { in.ExpenseDate = "15/03/2026" }},
		{"blank period", func(in *CreateInput) { in.ManagementPeriod = "" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			if _, err := ledger.Create(context.Background(), testMunicipality, in); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("err = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestCreate_EmitsAnchorEvent(t *testing.T) {
	emitter := &memEmitter{}
	ledger := NewLedger(newMemRecordRepo(), emitter)
	rec, err := ledger.Create(context.Background(), testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	waitForEvents(t, emitter, 1)
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	ev := emitter.events[0]
	if ev.EventType != anchordomain.EventRecordCreated {
		t.Errorf("event type = %q, want record_created", ev.EventType)
	}
	if ev.RecordID != rec.ID || ev.RecordHash != rec.RecordHash {
		t.Error("event should carry the record's id and hash")
	}
}

func TestVerifyIntegrity(t *testing.T) {
	repo := newMemRecordRepo()
	ledger := NewLedger(repo, nil)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	report, err := ledger.VerifyIntegrity(ctx, rec.ID)
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if !report.Match {
		t.Error("untampered record should match")
	}
	if report.StoredHash != report.ComputedHash {
		t.Error("hashes should agree for an untampered record")
	}
}

func TestVerifyIntegrity_DetectsTamper(t *testing.T) {
	repo := newMemRecordRepo()
	ledger := NewLedger(repo, nil)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	repo.mu.Lock()
	repo.m[rec.ID].Amount = "999999.99"
	repo.mu.Unlock()

	report, err := ledger.VerifyIntegrity(ctx, rec.ID)
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if report.Match {
		t.Error("tampered record should not match")
	}
	if report.StoredHash == report.ComputedHash {
		t.Error("computed hash should differ after tampering")
	}
}

func TestVerifyIntegrity_IgnoresLifecycleFields(t *testing.T) {
	repo := newMemRecordRepo()
	emitter := &memEmitter{}
	ledger := NewLedger(repo, emitter)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := ledger.Transition(ctx, rec.ID, testValidator, OutcomeValidate, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	report, err := ledger.VerifyIntegrity(ctx, rec.ID)
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if !report.Match {
		t.Error("status change must not affect integrity")
	}
}

func TestTransition_Validate(t *testing.T) {
	repo := newMemRecordRepo()
	emitter := &memEmitter{}
	ledger := NewLedger(repo, emitter)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := ledger.Transition(ctx, rec.ID, testValidator, OutcomeValidate, "")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != domain.StatusValidado {
		t.Errorf("status = %q, want VALIDADO", updated.Status)
	}
	if updated.ValidatorID == nil || *updated.ValidatorID != testValidator.ID {
		t.Error("validator id should be recorded")
	}
	if updated.ObservationReason != nil {
		t.Error("observation reason should be nil after validation")
	}

	waitForEvents(t, emitter, 2)
	emitter.mu.Lock()
	last := emitter.events[len(emitter.events)-1]
	emitter.mu.Unlock()
	if last.EventType != anchordomain.EventRecordValidated {
		t.Errorf("event type = %q, want record_validated", last.EventType)
	}
}

func TestTransition_Observe(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := ledger.Transition(ctx, rec.ID, testValidator, OutcomeObserve, "importe no respaldado")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != domain.StatusObservado {
		t.Errorf("status = %q, want OBSERVADO", updated.Status)
	}
	if updated.ObservationReason == nil || *updated.ObservationReason != "importe no respaldado" {
		t.Error("observation reason should be stored")
	}
}

func TestTransition_ObserveRequiresReason(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := ledger.Transition(ctx, rec.ID, testValidator, OutcomeObserve, "   "); !errors.Is(err, ErrMissingReason) {
		t.Errorf("err = %v, want ErrMissingReason", err)
	}
	got, err := ledger.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusPendiente {
		t.Errorf("status = %q, record must stay PENDIENTE", got.Status)
	}
}

func TestTransition_Terminal(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := ledger.Transition(ctx, rec.ID, testValidator, OutcomeValidate, ""); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// Terminal in both directions, including idempotent re-validation.
	if _, err := ledger.Transition(ctx, rec.ID, testValidator, OutcomeValidate, ""); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("re-validate err = %v, want ErrInvalidStatus", err)
	}
	if _, err := ledger.Transition(ctx, rec.ID, testValidator, OutcomeObserve, "motivo"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("observe-after-validate err = %v, want ErrInvalidStatus", err)
	}
}

func TestTransition_UnknownRecord(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	if _, err := ledger.Transition(context.Background(), "missing", testValidator, OutcomeValidate, ""); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestTransition_ConcurrentExactlyOneWins(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := OutcomeValidate
			reason := ""
			if i%2 == 1 {
				outcome = OutcomeObserve
				reason = "motivo"
			}
			_, results[i] = ledger.Transition(ctx, rec.ID, testValidator, outcome, reason)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidStatus):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, exactly one concurrent transition must succeed", wins)
	}
}

func TestAttachDocument(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := ledger.AttachDocument(ctx, testMunicipality, rec.ID, "bafybeigdyrzt5example")
	if err != nil {
		t.Fatalf("AttachDocument: %v", err)
	}
	if updated.DocumentCID == nil || *updated.DocumentCID != "bafybeigdyrzt5example" {
		t.Error("document cid should be stored")
	}
}

func TestAttachDocument_AllowedInTerminalStatus(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := ledger.Transition(ctx, rec.ID, testValidator, OutcomeValidate, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if _, err := ledger.AttachDocument(ctx, testMunicipality, rec.ID, "cid-post-validacion"); err != nil {
		t.Errorf("attachment must be independent of the approval state: %v", err)
	}
}

func TestAttachDocument_Errors(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	ctx := context.Background()
	rec, err := ledger.Create(ctx, testMunicipality, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := ledger.AttachDocument(ctx, testMunicipality, rec.ID, "  "); !errors.Is(err, ErrMissingCID) {
		t.Errorf("blank cid err = %v, want ErrMissingCID", err)
	}
	if _, err := ledger.AttachDocument(ctx, testMunicipality, "missing", "cid"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("unknown record err = %v, want ErrRecordNotFound", err)
	}
	other := &munidomain.Municipality{ID: "muni-2", Name: "Municipio Dos", Active: true}
	if _, err := ledger.AttachDocument(ctx, other, rec.ID, "cid"); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign record err = %v, want ErrForbidden", err)
	}
}

func TestGet_Unknown(t *testing.T) {
	ledger := NewLedger(newMemRecordRepo(), nil)
	if _, err := ledger.Get(context.Background(), "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestCheckTransitionInput(t *testing.T) {
	if err := CheckTransitionInput(OutcomeValidate, ""); err != nil {
		t.Errorf("validate without reason: %v", err)
	}
	if err := CheckTransitionInput(OutcomeObserve, "motivo"); err != nil {
		t.Errorf("observe with reason: %v", err)
	}
	if err := CheckTransitionInput(OutcomeObserve, " "); !errors.Is(err, ErrMissingReason) {
		t.Errorf("err = %v, want ErrMissingReason", err)
	}
}

// waitForEvents polls until the async emitter has at least n events.
func waitForEvents(t *testing.T, emitter *memEmitter, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		emitter.mu.Lock()
		got := len(emitter.events)
		emitter.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d anchor events", n)
}
