package approvalstore

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cpq-engine-api/internal/model"
)

// MongoStore is the production Store, backed by a collection indexed on
// (quote_id, status) for the pending-lookup path.
type MongoStore struct {
	collection *mongo.Collection
	breaker    *gobreaker.CircuitBreaker
}

// NewMongoStore constructs the production approval store and ensures its
// indexes exist.
func NewMongoStore(db *mongo.Database) *MongoStore {
	coll := db.Collection("approval_request")

	_, _ = coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "quote_id", Value: 1}, {Key: "status", Value: 1}},
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "approval-store",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &MongoStore{collection: coll, breaker: breaker}
}

// Insert writes a new approval request.
func (s *MongoStore) Insert(ctx context.Context, req model.ApprovalRequest) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		_, err := s.collection.InsertOne(ctx, req)
		return nil, err
	})
	return err
}

// Get retrieves an approval request by id.
func (s *MongoStore) Get(ctx context.Context, id model.ApprovalId) (model.ApprovalRequest, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var req model.ApprovalRequest
		err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return req, nil
	})
	if err != nil {
		return model.ApprovalRequest{}, err
	}
	return res.(model.ApprovalRequest), nil
}

// Decide transitions a Pending request, conditional on it still being
// Pending.
func (s *MongoStore) Decide(ctx context.Context, id model.ApprovalId, status model.ApprovalStatus, decidedBy, note string, decidedAt time.Time) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		filter := bson.M{"_id": id, "status": model.ApprovalStatusPending}
		update := bson.M{"$set": bson.M{
			"status":        status,
			"decided_by":    decidedBy,
			"decision_note": note,
			"decided_at":    decidedAt,
		}}
		result, err := s.collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return nil, err
		}
		if result.MatchedCount == 0 {
			return nil, ErrAlreadyDecided
		}
		return nil, nil
	})
	return err
}

// PendingForQuote returns the pending approval requests for quoteId.
func (s *MongoStore) PendingForQuote(ctx context.Context, quoteId model.QuoteId) ([]model.ApprovalRequest, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
		cursor, err := s.collection.Find(ctx, bson.M{"quote_id": quoteId, "status": model.ApprovalStatusPending}, opts)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)

		var reqs []model.ApprovalRequest
		if err := cursor.All(ctx, &reqs); err != nil {
			return nil, err
		}
		return reqs, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]model.ApprovalRequest), nil
}
