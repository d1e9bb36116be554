// Package audit emits structured, correlation-scoped decision events. It
// replaces the ad hoc console-plus-best-effort-Mongo error logging the
// teacher used with an explicit sink passed down the call chain: the
// correlation id, quote id, and thread id travel as an explicit context
// value, never as package-level mutable state.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cpq-engine-api/internal/model"
)

// Store persists audit events for later retrieval (support investigations,
// replay, compliance export).
type Store interface {
	Insert(ctx context.Context, event model.AuditEvent) error
}

// Sink is the capability the rest of the system depends on.
type Sink interface {
	Emit(ctx context.Context, event model.AuditEvent) error
}

// ZapSink logs every event as a structured zap entry and, when a Store is
// configured, persists it too. A failure to persist is logged but never
// blocks the caller — audit emission must not become a new source of
// request failures.
type ZapSink struct {
	logger *zap.Logger
	store  Store
}

// NewZapSink constructs a Sink. store may be nil, in which case events are
// only logged, never persisted.
func NewZapSink(logger *zap.Logger, store Store) *ZapSink {
	return &ZapSink{logger: logger, store: store}
}

// Emit logs event and, if a store is configured, persists it.
func (s *ZapSink) Emit(ctx context.Context, event model.AuditEvent) error {
	s.logger.Info("audit_event",
		zap.String("correlation_id", event.CorrelationId),
		zap.String("quote_id", string(event.QuoteId)),
		zap.String("thread_id", event.ThreadId),
		zap.String("event_type", event.EventType),
		zap.String("actor", event.Actor),
		zap.Time("at", event.At),
		zap.Any("detail", event.Detail),
	)

	if s.store == nil {
		return nil
	}
	if err := s.store.Insert(ctx, event); err != nil {
		s.logger.Warn("audit_event_persist_failed",
			zap.String("correlation_id", event.CorrelationId),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// CorrelationContext carries the correlation id, quote id, and thread id
// implicitly through a call chain, per the requirement that this state
// never live as a package-level global.
type CorrelationContext struct {
	CorrelationId string
	QuoteId       model.QuoteId
	ThreadId      string
}

type correlationContextKey struct{}

// WithCorrelation attaches cc to ctx.
func WithCorrelation(ctx context.Context, cc CorrelationContext) context.Context {
	return context.WithValue(ctx, correlationContextKey{}, cc)
}

// FromContext retrieves the CorrelationContext attached to ctx, if any.
func FromContext(ctx context.Context) (CorrelationContext, bool) {
	cc, ok := ctx.Value(correlationContextKey{}).(CorrelationContext)
	return cc, ok
}

// Emit builds an AuditEvent from ctx's CorrelationContext (if present) and
// emits it through sink. This is the call most of the application code
// uses instead of constructing model.AuditEvent by hand.
func Emit(ctx context.Context, sink Sink, eventType, actor string, detail map[string]interface{}, now func() time.Time) error {
	cc, _ := FromContext(ctx)
	return sink.Emit(ctx, model.AuditEvent{
		CorrelationId: cc.CorrelationId,
		QuoteId:       cc.QuoteId,
		ThreadId:      cc.ThreadId,
		EventType:     eventType,
		Actor:         actor,
		Detail:        detail,
		At:            now(),
	})
}

// TransitionAdapter adapts a Sink to execqueue's AuditSink interface, so the
// execution queue's transition rows flow through the same audit pipeline as
// every other decision event.
type TransitionAdapter struct {
	Sink Sink
}

// RecordTransition emits entry as a generic audit event.
func (a TransitionAdapter) RecordTransition(ctx context.Context, entry model.ExecutionTransitionAudit) error {
	return a.Sink.Emit(ctx, model.AuditEvent{
		EventType: "execution_transition",
		Detail: map[string]interface{}{
			"taskId":    string(entry.TaskId),
			"fromState": string(entry.FromState),
			"toState":   string(entry.ToState),
			"attempt":   entry.Attempt,
			"worker":    entry.Worker,
			"reason":    entry.Reason,
		},
		At: entry.At,
	})
}
