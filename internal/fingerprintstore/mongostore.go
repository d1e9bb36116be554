package fingerprintstore

import (
	"context"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cpq-engine-api/internal/model"
)

// MongoStore is the production Store, backed by a collection with a unique
// index on quote_id.
type MongoStore struct {
	collection *mongo.Collection
	breaker    *gobreaker.CircuitBreaker
}

// NewMongoStore constructs the production fingerprint store and ensures its
// indexes exist.
func NewMongoStore(db *mongo.Database) *MongoStore {
	coll := db.Collection("configuration_fingerprint")

	_, _ = coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "quote_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fingerprint-store",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &MongoStore{collection: coll, breaker: breaker}
}

// Upsert replaces the fingerprint on file for record.QuoteId.
func (s *MongoStore) Upsert(ctx context.Context, record model.ConfigurationFingerprint) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		_, err := s.collection.ReplaceOne(ctx, bson.M{"quote_id": record.QuoteId}, record, options.Replace().SetUpsert(true))
		return nil, err
	})
	return err
}

// Get returns the fingerprint on file for quoteId, or (nil, nil) if none
// has been recorded.
func (s *MongoStore) Get(ctx context.Context, quoteId model.QuoteId) (*model.ConfigurationFingerprint, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var record model.ConfigurationFingerprint
		err := s.collection.FindOne(ctx, bson.M{"quote_id": quoteId}).Decode(&record)
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
	return res.(*model.ConfigurationFingerprint), nil
}

// All returns every fingerprint on file.
func (s *MongoStore) All(ctx context.Context) ([]model.ConfigurationFingerprint, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		cursor, err := s.collection.Find(ctx, bson.M{})
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)

		var records []model.ConfigurationFingerprint
		if err := cursor.All(ctx, &records); err != nil {
			return nil, err
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]model.ConfigurationFingerprint), nil
}
