package execqueue

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cpq-engine-api/internal/model"
)

// MongoStore is the production Store, backed by a Mongo collection indexed
// for the claim protocol's hot query ((state, next_attempt_at)) and for
// idempotency_key lookups, with calls wrapped in a circuit breaker.
type MongoStore struct {
	collection *mongo.Collection
	breaker    *gobreaker.CircuitBreaker
}

// NewMongoStore constructs the production task store and ensures its
// indexes exist.
func NewMongoStore(db *mongo.Database) *MongoStore {
	coll := db.Collection("execution_queue_task")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
		{Keys: bson.D{{Key: "operation_key", Value: 1}}},
	}
	_, _ = coll.Indexes().CreateMany(context.Background(), indexes)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "execqueue-store",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &MongoStore{collection: coll, breaker: breaker}
}

// Insert inserts a newly submitted task.
func (s *MongoStore) Insert(ctx context.Context, task model.ExecutionTask) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		_, err := s.collection.InsertOne(ctx, task)
		return nil, err
	})
	return err
}

// Get fetches a task by id, returning (nil, nil) if absent.
func (s *MongoStore) Get(ctx context.Context, id model.ExecutionTaskId) (*model.ExecutionTask, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var task model.ExecutionTask
		err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &task, nil
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.(*model.ExecutionTask), nil
}

// ClaimNext finds one Queued, due task and atomically transitions it to
// Running, bumping both attempt and state_version in the same update so a
// racing worker's FindOneAndUpdate simply fails to match the document a
// second time.
func (s *MongoStore) ClaimNext(ctx context.Context, now time.Time, claimedBy string, claimExpiresAt time.Time) (*model.ExecutionTask, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		filter := bson.M{
			"state":           model.TaskStateQueued,
			"next_attempt_at": bson.M{"$lte": now},
		}
		update := bson.M{
			"$set": bson.M{
				"state":            model.TaskStateRunning,
				"claimed_by":       claimedBy,
				"claim_expires_at": claimExpiresAt,
				"updated_at":       now,
			},
			"$inc": bson.M{"attempt": 1, "state_version": 1},
		}
		opts := options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetSort(bson.D{{Key: "next_attempt_at", Value: 1}})

		var task model.ExecutionTask
		err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&task)
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoClaimableTask
		}
		if err != nil {
			return nil, err
		}
		return &task, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*model.ExecutionTask), nil
}

// UpdateConditional writes task back, matching on both its id and the
// caller-supplied expectedStateVersion so a stale caller's write is
// rejected rather than silently clobbering a newer state.
func (s *MongoStore) UpdateConditional(ctx context.Context, task model.ExecutionTask, expectedStateVersion int) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		filter := bson.M{"_id": task.ID, "state_version": expectedStateVersion}
		res, err := s.collection.ReplaceOne(ctx, filter, task)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, ErrStateVersionConflict
		}
		return nil, nil
	})
	return err
}

// FetchExpiredClaims returns Running tasks whose claim has lapsed.
func (s *MongoStore) FetchExpiredClaims(ctx context.Context, now time.Time) ([]model.ExecutionTask, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		filter := bson.M{
			"state":            model.TaskStateRunning,
			"claim_expires_at": bson.M{"$lt": now},
		}
		cursor, err := s.collection.Find(ctx, filter)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)

		var tasks []model.ExecutionTask
		if err := cursor.All(ctx, &tasks); err != nil {
			return nil, err
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]model.ExecutionTask), nil
}

// MongoIdempotencyStore is the production IdempotencyStore, relying on a
// unique index on operation_key to serialize concurrent first submitters.
type MongoIdempotencyStore struct {
	collection *mongo.Collection
	breaker    *gobreaker.CircuitBreaker
}

// NewMongoIdempotencyStore constructs the production idempotency ledger
// store and ensures its unique index exists.
func NewMongoIdempotencyStore(db *mongo.Database) *MongoIdempotencyStore {
	coll := db.Collection("execution_idempotency_ledger")

	_, _ = coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "execqueue-idempotency-store",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &MongoIdempotencyStore{collection: coll, breaker: breaker}
}

// Begin inserts record if operation_key is unused, or returns the existing
// record on a duplicate-key race.
func (s *MongoIdempotencyStore) Begin(ctx context.Context, record model.IdempotencyRecord) (model.IdempotencyRecord, bool, error) {
	var inserted bool
	res, err := s.breaker.Execute(func() (interface{}, error) {
		_, err := s.collection.InsertOne(ctx, record)
		if err == nil {
			inserted = true
			return record, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}

		var existing model.IdempotencyRecord
		findErr := s.collection.FindOne(ctx, bson.M{"_id": record.OperationKey}).Decode(&existing)
		if findErr != nil {
			return nil, findErr
		}
		return existing, nil
	})
	if err != nil {
		return model.IdempotencyRecord{}, false, err
	}

	return res.(model.IdempotencyRecord), inserted, nil
}

// Get fetches the idempotency record for operationKey, or (nil, nil) if
// absent.
func (s *MongoIdempotencyStore) Get(ctx context.Context, operationKey string) (*model.IdempotencyRecord, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var record model.IdempotencyRecord
		err := s.collection.FindOne(ctx, bson.M{"_id": operationKey}).Decode(&record)
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
	return res.(*model.IdempotencyRecord), nil
}

// Complete marks operationKey's record Completed with resultHash.
func (s *MongoIdempotencyStore) Complete(ctx context.Context, operationKey string, resultHash string, completedAt time.Time) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		update := bson.M{"$set": bson.M{
			"state":        model.IdempotencyStateCompleted,
			"result_hash":  resultHash,
			"completed_at": completedAt,
		}}
		_, err := s.collection.UpdateOne(ctx, bson.M{"_id": operationKey}, update)
		return nil, err
	})
	return err
}

// Fail marks operationKey's record Failed, allowing a future resubmission
// with a fresh operation_key to proceed.
func (s *MongoIdempotencyStore) Fail(ctx context.Context, operationKey string) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		update := bson.M{"$set": bson.M{"state": model.IdempotencyStateFailed}}
		_, err := s.collection.UpdateOne(ctx, bson.M{"_id": operationKey}, update)
		return nil, err
	})
	return err
}
