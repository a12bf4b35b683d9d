// Package handler exposes the public municipality surface over HTTP.
package handler

import (
	"errors"
	"net/http"

	"chain-audit/backend/internal/httpx"
	"chain-audit/backend/internal/municipality/service"
)

type MunicipalityHandler struct {
	municipalities *service.MunicipalityService
}

func NewMunicipalityHandler(municipalities *service.MunicipalityService) *MunicipalityHandler {
	return &MunicipalityHandler{municipalities: municipalities}
}

// Register mounts the municipality routes on mux.
func (h *MunicipalityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/municipalities", h.list)
	mux.HandleFunc("GET /api/v1/municipalities/{id}/stats", h.stats)
}

func (h *MunicipalityHandler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.municipalities.List(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	httpx.WriteData(w, http.StatusOK, out)
}

func (h *MunicipalityHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.municipalities.GetStats(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrMunicipalityNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "MUNICIPALITY_NOT_FOUND", err.Error())
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	httpx.WriteData(w, http.StatusOK, stats)
}
