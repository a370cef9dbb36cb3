package store

import (
	"context"
	"errors"

	"github.com/siot-decada-robotics/rmf-ros2/internal/model"
)

// ErrNotFound is returned when no outcome exists for a task id.
var ErrNotFound = errors.New("outcome not found")

// AuctionStore defines the interface for auction outcome persistence
type AuctionStore interface {
	SaveOutcome(ctx context.Context, outcome model.AuctionOutcome) error
	GetOutcome(ctx context.Context, taskID string) (model.AuctionOutcome, error)
	UpdateOutcome(ctx context.Context, outcome model.AuctionOutcome) error
	ListOutcomes(ctx context.Context, state model.AuctionState, limit int) ([]model.AuctionOutcome, error)
	Close() error
}
