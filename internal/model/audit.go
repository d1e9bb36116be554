package model

import "time"

// AuditEvent is one structured, append-only record of something the
// system decided or observed, correlated across the request that caused
// it. Emission order within a single correlation id is preserved by the
// sink; across correlation ids there is no ordering guarantee.
type AuditEvent struct {
	CorrelationId string                 `json:"correlationId" bson:"correlation_id"`
	QuoteId       QuoteId                `json:"quoteId,omitempty" bson:"quote_id,omitempty"`
	ThreadId      string                 `json:"threadId,omitempty" bson:"thread_id,omitempty"`
	EventType     string                 `json:"eventType" bson:"event_type"`
	Actor         string                 `json:"actor,omitempty" bson:"actor,omitempty"`
	Detail        map[string]interface{} `json:"detail,omitempty" bson:"detail,omitempty"`
	At            time.Time              `json:"at" bson:"at"`
}
