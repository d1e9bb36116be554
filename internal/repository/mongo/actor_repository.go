package mongo

import (
	"context"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cpq-engine-api/internal/model"
)

// ActorRepository handles actor identity and role data in MongoDB.
type ActorRepository struct {
	collection *mongo.Collection
	breaker    *gobreaker.CircuitBreaker
}

// NewActorRepository creates a new ActorRepository and ensures its indexes
// exist.
func NewActorRepository(db *mongo.Database) *ActorRepository {
	coll := db.Collection("actors")

	_, _ = coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "actor-repository",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &ActorRepository{collection: coll, breaker: breaker}
}

// Create inserts a new actor into the database.
func (r *ActorRepository) Create(ctx context.Context, actor *model.Actor) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		result, err := r.collection.InsertOne(ctx, actor)
		if err != nil {
			return nil, err
		}
		if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
			actor.ID = oid
		}
		return nil, nil
	})
	return err
}

// GetByEmail retrieves an actor by their email address.
func (r *ActorRepository) GetByEmail(ctx context.Context, email string) (*model.Actor, error) {
	res, err := r.breaker.Execute(func() (interface{}, error) {
		var actor model.Actor
		err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&actor)
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &actor, nil
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.(*model.Actor), nil
}

// GetByID retrieves an actor by their ID.
func (r *ActorRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Actor, error) {
	res, err := r.breaker.Execute(func() (interface{}, error) {
		var actor model.Actor
		err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&actor)
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &actor, nil
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.(*model.Actor), nil
}

// GetByIDString retrieves an actor by their ID given as a hex string.
func (r *ActorRepository) GetByIDString(ctx context.Context, id string) (*model.Actor, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, oid)
}

// SetActive enables or disables an actor's ability to authenticate.
func (r *ActorRepository) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"active": active}})
		return nil, err
	})
	return err
}

// ListByRole returns all active actors holding the given role, ordered by
// email, for routing an approval decision to an eligible decider.
func (r *ActorRepository) ListByRole(ctx context.Context, role string) ([]*model.Actor, error) {
	res, err := r.breaker.Execute(func() (interface{}, error) {
		opts := options.Find().SetSort(bson.D{{Key: "email", Value: 1}})
		cursor, err := r.collection.Find(ctx, bson.M{"role": role, "active": true}, opts)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)

		var actors []*model.Actor
		if err := cursor.All(ctx, &actors); err != nil {
			return nil, err
		}
		return actors, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]*model.Actor), nil
}
