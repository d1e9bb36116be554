package audit

import (
	"context"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"cpq-engine-api/internal/model"
)

// MongoStore is the production Store, persisting the audit_event stream.
type MongoStore struct {
	collection *mongo.Collection
	breaker    *gobreaker.CircuitBreaker
}

// NewMongoStore constructs the production audit event store and ensures its
// indexes exist.
func NewMongoStore(db *mongo.Database) *MongoStore {
	coll := db.Collection("audit_event")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "correlation_id", Value: 1}, {Key: "at", Value: 1}}},
		{Keys: bson.D{{Key: "quote_id", Value: 1}, {Key: "at", Value: 1}}},
	}
	_, _ = coll.Indexes().CreateMany(context.Background(), indexes)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "audit-store",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &MongoStore{collection: coll, breaker: breaker}
}

// Insert appends event to the audit stream.
func (s *MongoStore) Insert(ctx context.Context, event model.AuditEvent) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		_, err := s.collection.InsertOne(ctx, event)
		return nil, err
	})
	return err
}
