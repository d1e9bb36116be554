package ledger

import (
	"context"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cpq-engine-api/internal/model"
)

// MongoStore is the production Store, backed by a Mongo collection with a
// unique index on (quote_id, version) so that InsertIfVersionAbsent's
// optimistic-conflict detection is enforced by the database itself rather
// than by a read-then-write race in application code. Calls are wrapped in
// a circuit breaker so a struggling Mongo deployment fails fast instead of
// piling up blocked appenders.
type MongoStore struct {
	collection *mongo.Collection
	breaker    *gobreaker.CircuitBreaker
}

// NewMongoStore constructs the production ledger store and ensures its
// indexes exist.
func NewMongoStore(db *mongo.Database) *MongoStore {
	coll := db.Collection("ledger_entries")

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "quote_id", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "quote_id", Value: 1}, {Key: "version", Value: -1}}},
	}
	_, _ = coll.Indexes().CreateMany(context.Background(), indexes)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger-store",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &MongoStore{collection: coll, breaker: breaker}
}

// InsertIfVersionAbsent inserts entry, relying on the unique (quote_id,
// version) index to reject a duplicate with ErrVersionConflict.
func (s *MongoStore) InsertIfVersionAbsent(ctx context.Context, entry model.LedgerEntry) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		_, err := s.collection.InsertOne(ctx, entry)
		return nil, err
	})
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrVersionConflict
	}
	return err
}

// FetchByVersion returns the entry at (quoteId, version), or nil if absent.
func (s *MongoStore) FetchByVersion(ctx context.Context, quoteId model.QuoteId, version int) (*model.LedgerEntry, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var entry model.LedgerEntry
		err := s.collection.FindOne(ctx, bson.M{"quote_id": quoteId, "version": version}).Decode(&entry)
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &entry, nil
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.(*model.LedgerEntry), nil
}

// FetchLatest returns the highest-version entry for quoteId, or
// ErrNoSuchEntry if the quote has no entries.
func (s *MongoStore) FetchLatest(ctx context.Context, quoteId model.QuoteId) (*model.LedgerEntry, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
		var entry model.LedgerEntry
		err := s.collection.FindOne(ctx, bson.M{"quote_id": quoteId}, opts).Decode(&entry)
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoSuchEntry
		}
		if err != nil {
			return nil, err
		}
		return &entry, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*model.LedgerEntry), nil
}

// FetchAllOrdered returns every entry for quoteId sorted by version
// ascending.
func (s *MongoStore) FetchAllOrdered(ctx context.Context, quoteId model.QuoteId) ([]model.LedgerEntry, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})
		cursor, err := s.collection.Find(ctx, bson.M{"quote_id": quoteId}, opts)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)

		var entries []model.LedgerEntry
		if err := cursor.All(ctx, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]model.LedgerEntry), nil
}
