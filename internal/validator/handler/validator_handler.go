// Package handler exposes the public validator roster over HTTP.
package handler

import (
	"context"
	"net/http"

	"chain-audit/backend/internal/httpx"
	"chain-audit/backend/internal/validator/domain"
)

// ValidatorLister is the read surface this handler needs.
type ValidatorLister interface {
	List(ctx context.Context) ([]*domain.Validator, error)
}

type ValidatorHandler struct {
	validators ValidatorLister
}

func NewValidatorHandler(validators ValidatorLister) *ValidatorHandler {
	return &ValidatorHandler{validators: validators}
}

// Register mounts the validator routes on mux.
func (h *ValidatorHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/validators", h.list)
}

type validatorResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Wallet         string `json:"wallet"`
	Active         bool   `json:"active"`
	ValidatedCount int    `json:"validated_count"`
}

func (h *ValidatorHandler) list(w http.ResponseWriter, r *http.Request) {
	validators, err := h.validators.List(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	out := make([]validatorResponse, 0, len(validators))
	for _, v := range validators {
		out = append(out, validatorResponse{
			ID:             v.ID,
			Name:           v.Name,
			Wallet:         v.Wallet,
			Active:         v.Active,
			ValidatedCount: v.ValidatedCount,
		})
	}
	httpx.WriteData(w, http.StatusOK, out)
}
