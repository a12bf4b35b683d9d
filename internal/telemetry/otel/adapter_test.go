package otel

import (
	"context"
	"testing"
	"time"

	sdklog "go.opentelemetry.io/otel/sdk/log"

	"chain-audit/backend/internal/anchor/domain"
)

func TestNewEventEmitter_NilProvider(t *testing.T) {
	emitter := NewEventEmitter(nil)
	if emitter == nil {
		t.Fatal("NewEventEmitter(nil) should return a no-op emitter, not nil")
	}
	if err := emitter.Emit(context.Background(), &domain.Event{}); err != nil {
		t.Errorf("no-op Emit: %v", err)
	}
}

func TestEmit_NilEvent(t *testing.T) {
	emitter := NewEventEmitter(sdklog.NewLoggerProvider())
	if err := emitter.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(nil) should be a no-op, got %v", err)
	}
}

func TestEmit_Event(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	emitter := NewEventEmitter(provider)
	event := &domain.Event{
		EventType:      domain.EventRecordValidated,
		RecordID:       "rec-1",
		OnChainID:      7,
		RecordHash:     "abc123",
		TxHash:         "0xdeadbeef",
		MunicipalityID: "muni-1",
		ValidatorID:    "val-1",
		CreatedAt:      time.Now().UTC(),
	}
	if err := emitter.Emit(context.Background(), event); err != nil {
		t.Errorf("Emit: %v", err)
	}
}
