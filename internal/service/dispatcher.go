package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/siot-decada-robotics/rmf-ros2/internal/bidding"
	"github.com/siot-decada-robotics/rmf-ros2/internal/events"
	"github.com/siot-decada-robotics/rmf-ros2/internal/ledger"
	"github.com/siot-decada-robotics/rmf-ros2/internal/model"
	"github.com/siot-decada-robotics/rmf-ros2/internal/store"
	"github.com/siot-decada-robotics/rmf-ros2/internal/task"
	"github.com/siot-decada-robotics/rmf-ros2/internal/transport"
)

var (
	ErrInvalidRequest = errors.New("invalid task request")
	ErrTaskNotFound   = errors.New("task not found")
	ErrInvalidState   = errors.New("invalid task state")

	DefaultBidWindowMs = int64(2000)   // 2 seconds
	MaxBidWindowMs     = int64(300000) // 5 minutes
	MinBidWindowMs     = int64(500)    // half a second
)

// Dispatcher runs the task market: it validates submissions, opens bidding
// sessions, collects fleet responses over the transport, and records the
// resolution.
type Dispatcher struct {
	store        store.AuctionStore
	transport    transport.BidTransport
	deserializer *task.Deserializer
	auctioneer   *bidding.Auctioneer
	ledger       *ledger.Ledger
	events       *events.Publisher

	mu   sync.Mutex
	subs map[string]transport.Subscription
}

func New(st store.AuctionStore, tp transport.BidTransport, d *task.Deserializer) *Dispatcher {
	disp := &Dispatcher{
		store:        st,
		transport:    tp,
		deserializer: d,
		ledger:       ledger.New(),
		events:       events.NewPublisher("rmf-dispatcher"),
		subs:         make(map[string]transport.Subscription),
	}
	disp.auctioneer = bidding.NewAuctioneer(bidding.LeastFleetDiffCostEvaluator{}, disp.onResolved)
	return disp
}

// Auctioneer exposes the bidding policy for evaluator swaps.
func (s *Dispatcher) Auctioneer() *bidding.Auctioneer { return s.auctioneer }

// Ledger exposes the per-fleet award accounting.
func (s *Dispatcher) Ledger() *ledger.Ledger { return s.ledger }

// Events exposes the publisher for webhook registration.
func (s *Dispatcher) Events() *events.Publisher { return s.events }

// SubmitTask validates a task submission, opens a bidding session, and
// announces it to the fleets.
func (s *Dispatcher) SubmitTask(ctx context.Context, req model.TaskSubmission) (model.TaskResponse, error) {
	if req.Category == "" {
		return model.TaskResponse{}, fmt.Errorf("%w: missing category", ErrInvalidRequest)
	}
	if len(req.Description) == 0 {
		return model.TaskResponse{}, fmt.Errorf("%w: missing description", ErrInvalidRequest)
	}
	if _, errs := s.deserializer.Deserialize(req.Category, req.Description); len(errs) > 0 {
		return model.TaskResponse{}, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(errs, "; "))
	}

	if req.BidWindowMs == 0 {
		req.BidWindowMs = DefaultBidWindowMs
	}
	if req.BidWindowMs < MinBidWindowMs {
		req.BidWindowMs = MinBidWindowMs
	}
	if req.BidWindowMs > MaxBidWindowMs {
		req.BidWindowMs = MaxBidWindowMs
	}

	now := time.Now().UTC()
	taskID := generateTaskID()

	outcome := model.AuctionOutcome{
		TaskID:     taskID,
		Category:   req.Category,
		State:      model.AuctionOpen,
		CreatedAt:  now,
		DeadlineAt: now.Add(time.Duration(req.BidWindowMs) * time.Millisecond),
	}
	if err := s.store.SaveOutcome(ctx, outcome); err != nil {
		return model.TaskResponse{}, fmt.Errorf("save outcome: %w", err)
	}

	sub, err := s.transport.SubscribeResponses(taskID, func(response model.Response) {
		s.auctioneer.Submit(taskID, response)
	})
	if err != nil {
		return model.TaskResponse{}, fmt.Errorf("subscribe responses: %w", err)
	}
	s.mu.Lock()
	s.subs[taskID] = sub
	s.mu.Unlock()

	notice := model.BidNotice{
		TaskID:       taskID,
		Category:     req.Category,
		Request:      req.Description,
		Fleets:       req.Fleets,
		TimeWindowMs: req.BidWindowMs,
	}
	if _, err := s.auctioneer.Announce(notice); err != nil {
		s.dropSubscription(taskID)
		return model.TaskResponse{}, err
	}
	if err := s.transport.PublishNotice(notice); err != nil {
		slog.WarnContext(ctx, "bid notice delivery failed", "task_id", taskID, "error", err)
	}

	_ = s.events.Publish(ctx, events.EventTaskAnnounced, map[string]any{
		"task_id":            taskID,
		"category":           req.Category,
		"fleets":             req.Fleets,
		"bid_window_ms":      req.BidWindowMs,
		"bid_window_ends_at": outcome.DeadlineAt.Format(time.RFC3339Nano),
	})

	slog.InfoContext(ctx, "task_submitted",
		"task_id", taskID,
		"category", req.Category,
		"bid_window_ms", req.BidWindowMs,
	)

	return model.TaskResponse{
		TaskID:          taskID,
		State:           string(model.AuctionOpen),
		BidWindowEndsAt: outcome.DeadlineAt,
		CreatedAt:       now,
	}, nil
}

// onResolved is the auctioneer's resolution callback. It persists the
// outcome, books the winner into the ledger, and notifies the fleets.
func (s *Dispatcher) onResolved(taskID string, winner *model.Proposal, responses []model.Response) {
	ctx := context.Background()
	s.dropSubscription(taskID)

	outcome, err := s.store.GetOutcome(ctx, taskID)
	if err != nil {
		slog.Error("resolved session has no stored outcome", "task_id", taskID, "error", err)
		return
	}

	now := time.Now().UTC()
	outcome.Responses = responses
	outcome.ResolvedAt = &now

	if winner == nil {
		outcome.State = model.AuctionUnassigned
		if err := s.store.UpdateOutcome(ctx, outcome); err != nil {
			slog.Error("persist unassigned outcome", "task_id", taskID, "error", err)
		}
		_ = s.events.Publish(ctx, events.EventTaskUnassigned, map[string]any{
			"task_id":   taskID,
			"category":  outcome.Category,
			"bid_count": len(responses),
		})
		return
	}

	outcome.State = model.AuctionAwarded
	outcome.Winner = winner
	if err := s.store.UpdateOutcome(ctx, outcome); err != nil {
		slog.Error("persist awarded outcome", "task_id", taskID, "error", err)
	}

	s.ledger.Record(taskID, winner.FleetName, winner.RobotName,
		winner.PrevCost, winner.NewCost, now)

	award := model.AwardNotice{TaskID: taskID, Winner: *winner, AwardedAt: now}
	if err := s.transport.PublishAward(winner.FleetName, award); err != nil {
		slog.Error("award delivery failed",
			"task_id", taskID, "fleet", winner.FleetName, "error", err)
	}

	_ = s.events.Publish(ctx, events.EventTaskAwarded, map[string]any{
		"task_id":     taskID,
		"fleet_name":  winner.FleetName,
		"robot_name":  winner.RobotName,
		"prev_cost":   winner.PrevCost,
		"new_cost":    winner.NewCost,
		"finish_time": winner.FinishTime.Format(time.RFC3339Nano),
		"bid_count":   len(responses),
	})
}

// GetTask retrieves the auction outcome for a task.
func (s *Dispatcher) GetTask(ctx context.Context, taskID string) (model.AuctionOutcome, error) {
	outcome, err := s.store.GetOutcome(ctx, taskID)
	if err != nil {
		return model.AuctionOutcome{}, ErrTaskNotFound
	}
	return outcome, nil
}

// CancelTask withdraws a task whose bidding is still open. Tasks that have
// already resolved cannot be cancelled here.
func (s *Dispatcher) CancelTask(ctx context.Context, taskID string) (model.AuctionOutcome, error) {
	outcome, err := s.store.GetOutcome(ctx, taskID)
	if err != nil {
		return model.AuctionOutcome{}, ErrTaskNotFound
	}
	if outcome.State != model.AuctionOpen {
		return model.AuctionOutcome{}, fmt.Errorf("%w: task is %s", ErrInvalidState, outcome.State)
	}

	s.auctioneer.Cancel(taskID)
	s.dropSubscription(taskID)

	now := time.Now().UTC()
	outcome.State = model.AuctionCancelled
	outcome.ResolvedAt = &now
	if err := s.store.UpdateOutcome(ctx, outcome); err != nil {
		return model.AuctionOutcome{}, fmt.Errorf("persist cancellation: %w", err)
	}

	_ = s.events.Publish(ctx, events.EventTaskCancelled, map[string]any{
		"task_id":      taskID,
		"reason":       "cancelled by operator",
		"cancelled_at": now.Format(time.RFC3339Nano),
	})

	slog.InfoContext(ctx, "task_cancelled", "task_id", taskID)
	return outcome, nil
}

// ReportExecution records the winning fleet's terminal report for an
// awarded task and publishes the matching lifecycle event. Only awarded
// tasks accept a report.
func (s *Dispatcher) ReportExecution(ctx context.Context, taskID string, report model.ExecutionReport) (model.AuctionOutcome, error) {
	outcome, err := s.store.GetOutcome(ctx, taskID)
	if err != nil {
		return model.AuctionOutcome{}, ErrTaskNotFound
	}
	if outcome.State != model.AuctionAwarded {
		return model.AuctionOutcome{}, fmt.Errorf("%w: task is %s", ErrInvalidState, outcome.State)
	}

	now := time.Now().UTC()
	var fleet, robot string
	if outcome.Winner != nil {
		fleet = outcome.Winner.FleetName
		robot = outcome.Winner.RobotName
	}

	if report.Success {
		outcome.State = model.AuctionCompleted
	} else {
		outcome.State = model.AuctionFailed
	}
	if err := s.store.UpdateOutcome(ctx, outcome); err != nil {
		return model.AuctionOutcome{}, fmt.Errorf("persist execution result: %w", err)
	}

	if report.Success {
		_ = s.events.Publish(ctx, events.EventTaskCompleted, map[string]any{
			"task_id":      taskID,
			"fleet_name":   fleet,
			"robot_name":   robot,
			"completed_at": now.Format(time.RFC3339Nano),
		})
	} else {
		_ = s.events.Publish(ctx, events.EventTaskFailed, map[string]any{
			"task_id":    taskID,
			"fleet_name": fleet,
			"robot_name": robot,
			"reason":     report.Reason,
		})
	}

	slog.InfoContext(ctx, "task_execution_reported",
		"task_id", taskID, "state", string(outcome.State))
	return outcome, nil
}

// ListTasks returns recent auction outcomes, optionally filtered by state.
func (s *Dispatcher) ListTasks(ctx context.Context, state model.AuctionState, limit int) ([]model.AuctionOutcome, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListOutcomes(ctx, state, limit)
}

func (s *Dispatcher) dropSubscription(taskID string) {
	s.mu.Lock()
	sub, ok := s.subs[taskID]
	if ok {
		delete(s.subs, taskID)
	}
	s.mu.Unlock()
	if ok {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("unsubscribe failed", "task_id", taskID, "error", err)
		}
	}
}

func generateTaskID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "task_" + hex.EncodeToString(b[:])
}
