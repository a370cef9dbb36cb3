package store

import (
	"context"
	"errors"
	"time"

	"github.com/siot-decada-robotics/rmf-ros2/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoAuctionStore struct {
	coll *mongo.Collection
}

func NewMongoAuctionStore(client *mongo.Client, dbName string, collName string) *MongoAuctionStore {
	return &MongoAuctionStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

func (s *MongoAuctionStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "state", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "category", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "winner.fleet_name", Value: 1}},
		},
	}
	_, err := s.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *MongoAuctionStore) SaveOutcome(ctx context.Context, outcome model.AuctionOutcome) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.coll.InsertOne(ctx, outcome)
	return err
}

func (s *MongoAuctionStore) GetOutcome(ctx context.Context, taskID string) (model.AuctionOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var outcome model.AuctionOutcome
	err := s.coll.FindOne(ctx, bson.M{"task_id": taskID}).Decode(&outcome)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.AuctionOutcome{}, ErrNotFound
		}
		return model.AuctionOutcome{}, err
	}
	return outcome, nil
}

func (s *MongoAuctionStore) UpdateOutcome(ctx context.Context, outcome model.AuctionOutcome) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.coll.ReplaceOne(ctx, bson.M{"task_id": outcome.TaskID}, outcome)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoAuctionStore) ListOutcomes(ctx context.Context, state model.AuctionState, limit int) ([]model.AuctionOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if state != "" {
		filter["state"] = state
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var outcomes []model.AuctionOutcome
	for cur.Next(ctx) {
		var outcome model.AuctionOutcome
		if err := cur.Decode(&outcome); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}

	if err := cur.Err(); err != nil {
		return nil, err
	}

	return outcomes, nil
}

func (s *MongoAuctionStore) Close() error {
	// MongoDB client is shared, no need to close here
	return nil
}
