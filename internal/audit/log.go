package audit

import (
	"context"
	"log/slog"

	"bloodlink/pkg/attrs"
	"bloodlink/pkg/requestcontext"
)

// Emitter accepts audit events. *Publisher satisfies it, as do the
// per-feature publisher interfaces the services declare.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// detailKeys are the attr keys lifted onto the event's detail map.
var detailKeys = []string{"reason", "blood_type", "status"}

// Log writes one audit log line and emits the matching event. attrList is a
// slog-style key-value list; known string values become event details, and
// the request ID from the context rides along on the log line.
func Log(ctx context.Context, logger *slog.Logger, emitter Emitter, event Event, attrList ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}
	args := append(attrList, "action", event.Action, "log_type", "audit")
	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}
	if emitter == nil {
		return
	}

	for _, key := range detailKeys {
		val := attrs.ExtractString(attrList, key)
		if val == "" {
			continue
		}
		if event.Details == nil {
			event.Details = make(map[string]string)
		}
		event.Details[key] = val
	}
	_ = emitter.Emit(ctx, event)
}
