package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"chain-audit/backend/internal/anchor"
	"chain-audit/backend/internal/anchor/domain"
)

// NewEventEmitter returns an anchor emitter that sends ledger events as OTel
// log records via the given LoggerProvider. If provider is nil, returns a
// no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) anchor.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("chain-audit.anchor")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the anchor event to an OTel log record and emits it.
// Best-effort; the collector owns durability.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetBody(otellog.StringValue(event.RecordHash))
	rec.AddAttributes(
		otellog.String("event_type", string(event.EventType)),
		otellog.String("record_id", event.RecordID),
		otellog.Int64("on_chain_id", event.OnChainID),
		otellog.String("tx_hash", event.TxHash),
		otellog.String("municipality_id", event.MunicipalityID),
	)
	if event.ValidatorID != "" {
		rec.AddAttributes(otellog.String("validator_id", event.ValidatorID))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
