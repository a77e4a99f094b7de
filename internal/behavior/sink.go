package behavior

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CollectionName is the append-only behavior log sink (§6).
const CollectionName = "user_behavior_log"

// Sink appends behavior events to the durable log store that the
// recommender (C6) later aggregates.
type Sink interface {
	Append(ctx context.Context, event Event) error
	// All returns the entire log, used to build the global
	// user-course matrix (§4.6 step 2).
	All(ctx context.Context) ([]Event, error)
}

// MongoSink is the Sink backed by go.mongodb.org/mongo-driver,
// grounded on the original MongoDBClientManager's index set over
// user_behavior_log (user_id, course_id, action_type, created_time,
// compound (user_id, course_id)).
type MongoSink struct {
	coll *mongo.Collection
}

// NewMongoSink wraps an existing collection handle. EnsureIndexes
// should be called once at startup, mirroring _create_indexes.
func NewMongoSink(coll *mongo.Collection) *MongoSink {
	return &MongoSink{coll: coll}
}

// EnsureIndexes creates the index set the original client manager
// builds on startup. Safe to call repeatedly; index creation is
// idempotent in MongoDB when the keys and options match.
func (s *MongoSink) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "course_id", Value: 1}}},
		{Keys: bson.D{{Key: "action_type", Value: 1}}},
		{Keys: bson.D{{Key: "created_time", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "course_id", Value: 1}}},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("ensure behavior log indexes: %w", err)
	}
	return nil
}

func (s *MongoSink) Append(ctx context.Context, event Event) error {
	_, err := s.coll.InsertOne(ctx, event)
	return err
}

func (s *MongoSink) All(ctx context.Context) ([]Event, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
