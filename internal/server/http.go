// Package server assembles the HTTP API from the per-feature handlers.
package server

import (
	"log/slog"
	"net/http"

	authhandler "chain-audit/backend/internal/auth/handler"
	authservice "chain-audit/backend/internal/auth/service"
	healthhandler "chain-audit/backend/internal/health/handler"
	"chain-audit/backend/internal/httpx"
	munihandler "chain-audit/backend/internal/municipality/handler"
	muniservice "chain-audit/backend/internal/municipality/service"
	recordhandler "chain-audit/backend/internal/record/handler"
	recordservice "chain-audit/backend/internal/record/service"
	"chain-audit/backend/internal/security"
	validatorhandler "chain-audit/backend/internal/validator/handler"
)

// Deps holds the services the HTTP API is built from.
type Deps struct {
	Auth           *authservice.AuthService
	Tokens         *security.TokenProvider
	Ledger         *recordservice.Ledger
	Municipalities *muniservice.MunicipalityService
	Validators     validatorhandler.ValidatorLister
	// HealthPinger is used for readiness (e.g. *sql.DB). If nil, the health
	// endpoint skips the DB ping.
	HealthPinger healthhandler.Pinger
	Logger       *slog.Logger
}

// NewHandler builds the full API handler: all routes mounted on one mux,
// wrapped in recover, logging, and tracing middleware.
//
// Route → handler mapping:
//   - /api/v1/auth/*           → internal/auth/handler
//   - /api/v1/records*         → internal/record/handler
//   - /api/v1/municipalities*  → internal/municipality/handler
//   - /api/v1/validators       → internal/validator/handler
//   - /api/v1/health           → internal/health/handler
func NewHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	authhandler.NewAuthHandler(deps.Auth, deps.Tokens).Register(mux)
	recordhandler.NewRecordHandler(deps.Ledger, deps.Municipalities, deps.Auth).Register(mux)
	munihandler.NewMunicipalityHandler(deps.Municipalities).Register(mux)
	validatorhandler.NewValidatorHandler(deps.Validators).Register(mux)
	healthhandler.NewHealthHandler(deps.HealthPinger).Register(mux)

	return httpx.WithRecover(logger, httpx.WithLogging(logger, httpx.WithTracing(mux)))
}
