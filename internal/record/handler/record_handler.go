// Package handler exposes the audit-record ledger over HTTP: public reads,
// API-key-authenticated submission, and signature-authorized transitions.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	authservice "chain-audit/backend/internal/auth/service"
	challengedomain "chain-audit/backend/internal/challenge/domain"
	"chain-audit/backend/internal/httpx"
	munidomain "chain-audit/backend/internal/municipality/domain"
	"chain-audit/backend/internal/record/domain"
	"chain-audit/backend/internal/record/repository"
	"chain-audit/backend/internal/record/service"
	validatordomain "chain-audit/backend/internal/validator/domain"
)

// apiKeyHeader carries the municipality credential on submission routes.
const apiKeyHeader = "X-Api-Key"

// MunicipalityAuth resolves an API key to its active municipality.
type MunicipalityAuth interface {
	Authenticate(ctx context.Context, apiKey string) (*munidomain.Municipality, error)
}

type RecordHandler struct {
	ledger *service.Ledger
	munis  MunicipalityAuth
	auth   *authservice.AuthService
}

func NewRecordHandler(ledger *service.Ledger, munis MunicipalityAuth, auth *authservice.AuthService) *RecordHandler {
	return &RecordHandler{ledger: ledger, munis: munis, auth: auth}
}

// Register mounts the record routes on mux.
func (h *RecordHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/records", h.create)
	mux.HandleFunc("GET /api/v1/records", h.list)
	mux.HandleFunc("GET /api/v1/records/{id}", h.get)
	mux.HandleFunc("GET /api/v1/records/{id}/verify", h.verify)
	mux.HandleFunc("POST /api/v1/records/{id}/document", h.attachDocument)
	mux.HandleFunc("POST /api/v1/records/{id}/validate", h.validate)
	mux.HandleFunc("POST /api/v1/records/{id}/observe", h.observe)
}

type recordResponse struct {
	ID                string         `json:"id"`
	OnChainID         int64          `json:"on_chain_id"`
	RecordHash        string         `json:"record_hash"`
	MunicipalityID    string         `json:"municipality_id"`
	SpendType         string         `json:"spend_type"`
	Amount            string         `json:"amount"`
	Currency          string         `json:"currency"`
	Description       string         `json:"description"`
	ExpenseDate       string         `json:"expense_date"`
	RecordedAt        time.Time      `json:"recorded_at"`
	ManagementPeriod  string         `json:"management_period"`
	Status            string         `json:"status"`
	ValidatorID       *string        `json:"validator_id"`
	ObservationReason *string        `json:"observation_reason"`
	DocumentCID       *string        `json:"document_cid"`
	TxHash            string         `json:"tx_hash"`
	Metadata          map[string]any `json:"metadata"`
}

func toRecordResponse(rec *domain.Record) recordResponse {
	return recordResponse{
		ID:                rec.ID,
		OnChainID:         rec.OnChainID,
		RecordHash:        rec.RecordHash,
		MunicipalityID:    rec.MunicipalityID,
		SpendType:         string(rec.SpendType),
		Amount:            rec.Amount,
		Currency:          rec.Currency,
		Description:       rec.Description,
		ExpenseDate:       rec.ExpenseDate,
		RecordedAt:        rec.RecordedAt,
		ManagementPeriod:  rec.ManagementPeriod,
		Status:            string(rec.Status),
		ValidatorID:       rec.ValidatorID,
		ObservationReason: rec.ObservationReason,
		DocumentCID:       rec.DocumentCID,
		TxHash:            rec.TxHash,
		Metadata:          rec.Metadata,
	}
}

// authenticateMunicipality resolves the X-Api-Key header; a miss writes the
// 401 itself and returns nil.
func (h *RecordHandler) authenticateMunicipality(w http.ResponseWriter, r *http.Request) *munidomain.Municipality {
	m, err := h.munis.Authenticate(r.Context(), r.Header.Get(apiKeyHeader))
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return nil
	}
	if m == nil {
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_API_KEY", "unknown or inactive API key")
		return nil
	}
	return m
}

func (h *RecordHandler) create(w http.ResponseWriter, r *http.Request) {
	m := h.authenticateMunicipality(w, r)
	if m == nil {
		return
	}
	var in struct {
		SpendType        string         `json:"spend_type"`
		Amount           float64        `json:"amount"`
		Currency         string         `json:"currency"`
		Description      string         `json:"description"`
		ExpenseDate      string         `json:"expense_date"`
		ManagementPeriod string         `json:"management_period"`
		Metadata         map[string]any `json:"metadata"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid JSON body")
		return
	}
	rec, err := h.ledger.Create(r.Context(), m, service.CreateInput{
		SpendType:        in.SpendType,
		Amount:           in.Amount,
		Currency:         in.Currency,
		Description:      in.Description,
		ExpenseDate:      in.ExpenseDate,
		ManagementPeriod: in.ManagementPeriod,
		Metadata:         in.Metadata,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *RecordHandler) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilters(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	recs, total, err := h.ledger.List(r.Context(), f)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"data": out,
		"meta": map[string]any{
			"total": total,
			"page":  f.Page,
			"limit": f.Limit,
		},
	})
}

func (h *RecordHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, toRecordResponse(rec))
}

func (h *RecordHandler) verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.VerifyIntegrity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, map[string]any{
		"record_id":     report.RecordID,
		"match":         report.Match,
		"stored_hash":   report.StoredHash,
		"computed_hash": report.ComputedHash,
	})
}

func (h *RecordHandler) attachDocument(w http.ResponseWriter, r *http.Request) {
	m := h.authenticateMunicipality(w, r)
	if m == nil {
		return
	}
	var in struct {
		CID string `json:"cid"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid JSON body")
		return
	}
	rec, err := h.ledger.AttachDocument(r.Context(), m, r.PathValue("id"), in.CID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, toRecordResponse(rec))
}

type transitionRequest struct {
	Wallet    string `json:"wallet"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
	Reason    string `json:"reason"`
}

func (h *RecordHandler) validate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, challengedomain.PurposeValidateRecord, service.OutcomeValidate)
}

func (h *RecordHandler) observe(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, challengedomain.PurposeObserveRecord, service.OutcomeObserve)
}

// transition runs one signed state change. The observe reason is checked
// before the nonce is consumed, so a malformed request does not burn a
// challenge; everything after authorization burns it regardless of outcome.
func (h *RecordHandler) transition(w http.ResponseWriter, r *http.Request, purpose challengedomain.Purpose, outcome service.Outcome) {
	var in transitionRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid JSON body")
		return
	}
	var v *validatordomain.Validator
	err := service.CheckTransitionInput(outcome, in.Reason)
	if err == nil {
		v, err = h.auth.AuthorizeAction(r.Context(), in.Wallet, purpose, in.Nonce, in.Signature)
	}
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	rec, err := h.ledger.Transition(r.Context(), r.PathValue("id"), v, outcome, in.Reason)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, toRecordResponse(rec))
}

func parseListFilters(r *http.Request) (repository.ListFilters, error) {
	q := r.URL.Query()
	var f repository.ListFilters
	f.MunicipalityID = q.Get("municipality_id")
	if v := q.Get("status"); v != "" {
		status, err := domain.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = status
	}
	if v := q.Get("spend_type"); v != "" {
		spendType, err := domain.ParseSpendType(v)
		if err != nil {
			return f, err
		}
		f.SpendType = spendType
	}
	f.DateFrom = q.Get("date_from")
	f.DateTo = q.Get("date_to")
	f.AmountMin = q.Get("amount_min")
	f.AmountMax = q.Get("amount_max")
	f.Page = parseIntDefault(q.Get("page"), 1)
	f.Limit = parseIntDefault(q.Get("limit"), 20)
	return f, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// writeLedgerError maps ledger sentinels to the wire. A transition attempt
// on a non-PENDIENTE record is a 409: the record exists, its state conflicts.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPayload):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
	case errors.Is(err, service.ErrMissingReason):
		httpx.WriteError(w, http.StatusBadRequest, "MISSING_REASON", err.Error())
	case errors.Is(err, service.ErrMissingCID):
		httpx.WriteError(w, http.StatusBadRequest, "MISSING_CID", err.Error())
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "FORBIDDEN_RECORD", err.Error())
	case errors.Is(err, service.ErrRecordNotFound):
		httpx.WriteError(w, http.StatusNotFound, "RECORD_NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		httpx.WriteError(w, http.StatusConflict, "INVALID_STATUS", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// writeTransitionError covers the pre-ledger failures of a transition:
// structural (reason) and authorization (actor, nonce, signature).
func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingReason):
		httpx.WriteError(w, http.StatusBadRequest, "MISSING_REASON", err.Error())
	case errors.Is(err, authservice.ErrUnauthorizedActor):
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_VALIDATOR", err.Error())
	case errors.Is(err, authservice.ErrInvalidNonce):
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_NONCE", err.Error())
	case errors.Is(err, authservice.ErrInvalidSignature):
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
