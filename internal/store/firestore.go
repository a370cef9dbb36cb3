package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/siot-decada-robotics/rmf-ros2/internal/model"
	"google.golang.org/api/iterator"
)

type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(projectID, collection string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(context.Background(), projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreStore{
		client:     client,
		collection: collection,
	}, nil
}

func (s *FirestoreStore) SaveOutcome(ctx context.Context, outcome model.AuctionOutcome) error {
	_, err := s.client.Collection(s.collection).Doc(outcome.TaskID).Set(ctx, outcome)
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetOutcome(ctx context.Context, taskID string) (model.AuctionOutcome, error) {
	doc, err := s.client.Collection(s.collection).Doc(taskID).Get(ctx)
	if err != nil {
		return model.AuctionOutcome{}, fmt.Errorf("get outcome: %w", err)
	}

	var outcome model.AuctionOutcome
	if err := doc.DataTo(&outcome); err != nil {
		return model.AuctionOutcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	return outcome, nil
}

func (s *FirestoreStore) UpdateOutcome(ctx context.Context, outcome model.AuctionOutcome) error {
	_, err := s.client.Collection(s.collection).Doc(outcome.TaskID).Set(ctx, outcome)
	if err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListOutcomes(ctx context.Context, state model.AuctionState, limit int) ([]model.AuctionOutcome, error) {
	query := s.client.Collection(s.collection).
		OrderBy("created_at", firestore.Desc).
		Limit(limit)
	if state != "" {
		query = s.client.Collection(s.collection).
			Where("state", "==", string(state)).
			OrderBy("created_at", firestore.Desc).
			Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var outcomes []model.AuctionOutcome
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate outcomes: %w", err)
		}

		var outcome model.AuctionOutcome
		if err := doc.DataTo(&outcome); err != nil {
			return nil, fmt.Errorf("decode outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
