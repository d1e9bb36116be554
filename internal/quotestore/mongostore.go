package quotestore

import (
	"context"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cpq-engine-api/internal/model"
)

// headDocument is the current-head collection's document shape: the Quote
// plus the version the document was last saved at, used as the optimistic
// concurrency guard.
type headDocument struct {
	model.Quote `bson:",inline"`
}

// versionDocument keys the immutable per-version archive by
// (quote_id, version).
type versionDocument struct {
	QuoteId model.QuoteId `bson:"quote_id"`
	Version int           `bson:"version"`
	Quote   model.Quote   `bson:"quote"`
}

// MongoStore is the production Store, backed by a current-head collection
// and an append-only per-version archive collection. Calls are wrapped in a
// circuit breaker so a struggling Mongo deployment fails fast.
type MongoStore struct {
	heads    *mongo.Collection
	versions *mongo.Collection
	breaker  *gobreaker.CircuitBreaker
}

// NewMongoStore constructs the production quote store and ensures its
// indexes exist.
func NewMongoStore(db *mongo.Database) *MongoStore {
	heads := db.Collection("quote_heads")
	versions := db.Collection("quote_versions")

	_, _ = versions.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "quote_id", Value: 1}, {Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "quote-store",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &MongoStore{heads: heads, versions: versions, breaker: breaker}
}

// Save archives quote at quote.Version and advances the head, conditional
// on the head's current version matching expectedVersion.
func (s *MongoStore) Save(ctx context.Context, quote model.Quote, expectedVersion int) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		filter := bson.M{"_id": quote.ID, "version": expectedVersion}
		if expectedVersion == 0 {
			// A brand new quote: upsert is safe because the unique _id
			// guards against a genuine duplicate create.
			_, err := s.heads.ReplaceOne(ctx, bson.M{"_id": quote.ID}, headDocument{quote}, options.Replace().SetUpsert(true))
			if err != nil {
				return nil, err
			}
		} else {
			result, err := s.heads.ReplaceOne(ctx, filter, headDocument{quote})
			if err != nil {
				return nil, err
			}
			if result.MatchedCount == 0 {
				return nil, ErrVersionConflict
			}
		}

		_, err := s.versions.InsertOne(ctx, versionDocument{QuoteId: quote.ID, Version: quote.Version, Quote: quote})
		return nil, err
	})
	return err
}

// Head returns the current version of quoteId.
func (s *MongoStore) Head(ctx context.Context, quoteId model.QuoteId) (model.Quote, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var doc headDocument
		err := s.heads.FindOne(ctx, bson.M{"_id": quoteId}).Decode(&doc)
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return doc.Quote, nil
	})
	if err != nil {
		return model.Quote{}, err
	}
	return res.(model.Quote), nil
}

// AtVersion returns the archived snapshot of quoteId at version.
func (s *MongoStore) AtVersion(ctx context.Context, quoteId model.QuoteId, version int) (model.Quote, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var doc versionDocument
		err := s.versions.FindOne(ctx, bson.M{"quote_id": quoteId, "version": version}).Decode(&doc)
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return doc.Quote, nil
	})
	if err != nil {
		return model.Quote{}, err
	}
	return res.(model.Quote), nil
}
