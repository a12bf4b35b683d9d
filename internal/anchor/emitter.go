// Package anchor publishes ledger events (record created/validated/observed)
// to an external anchor feed, best-effort.
package anchor

import (
	"context"
	"log/slog"
	"time"

	"chain-audit/backend/internal/anchor/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// EventEmitter emits anchor events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is
// not blocked. Use from request paths for fire-and-forget emission; errors
// are logged.
//
// emitter and event may be nil; EmitAsync returns immediately without
// starting a goroutine. The goroutine uses context.Background() with
// emitTimeout so request cancellation does not abort an in-flight emit.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			slog.Error("anchor_emit_failed", "event_type", event.EventType, "record_id", event.RecordID, "error", err)
		}
	}()
}
