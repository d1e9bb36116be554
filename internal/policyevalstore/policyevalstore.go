// Package policyevalstore persists the policy engine's decision for each
// quote version alongside its pricing snapshot, so the explanation
// assembler can cite the policy evidence for a version without re-running
// the policy engine.
package policyevalstore

import (
	"context"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cpq-engine-api/internal/model"
)

// Store is the persistence port.
type Store interface {
	Record(ctx context.Context, record model.PolicyEvaluationRecord) error
	Get(ctx context.Context, quoteId model.QuoteId, version int) (*model.PolicyEvaluationRecord, error)
}

// MongoStore is the production Store.
type MongoStore struct {
	collection *mongo.Collection
	breaker    *gobreaker.CircuitBreaker
}

// NewMongoStore constructs the production policy evaluation store and
// ensures its indexes exist.
func NewMongoStore(db *mongo.Database) *MongoStore {
	coll := db.Collection("policy_evaluation_record")

	_, _ = coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "quote_id", Value: 1}, {Key: "quote_version", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "policy-eval-store",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &MongoStore{collection: coll, breaker: breaker}
}

// Record upserts the policy evaluation for record's (quote_id,
// quote_version).
func (s *MongoStore) Record(ctx context.Context, record model.PolicyEvaluationRecord) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		filter := bson.M{"quote_id": record.QuoteId, "quote_version": record.QuoteVersion}
		_, err := s.collection.ReplaceOne(ctx, filter, record, options.Replace().SetUpsert(true))
		return nil, err
	})
	return err
}

// Get fetches the policy evaluation for (quoteId, version), or (nil, nil)
// if none has been recorded.
func (s *MongoStore) Get(ctx context.Context, quoteId model.QuoteId, version int) (*model.PolicyEvaluationRecord, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var record model.PolicyEvaluationRecord
		err := s.collection.FindOne(ctx, bson.M{"quote_id": quoteId, "quote_version": version}).Decode(&record)
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &record, nil
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.(*model.PolicyEvaluationRecord), nil
}
