package model

import (
	"encoding/json"
	"time"
)

// AuctionState tracks a task's progress through bidding.
type AuctionState string

const (
	AuctionOpen       AuctionState = "open"
	AuctionAwarded    AuctionState = "awarded"
	AuctionUnassigned AuctionState = "unassigned"
	AuctionCancelled  AuctionState = "cancelled"
	AuctionCompleted  AuctionState = "completed"
	AuctionFailed     AuctionState = "failed"
)

// AuctionOutcome is the persisted record of one bidding session.
type AuctionOutcome struct {
	TaskID     string       `json:"task_id" bson:"task_id" firestore:"task_id"`
	Category   string       `json:"category" bson:"category" firestore:"category"`
	State      AuctionState `json:"state" bson:"state" firestore:"state"`
	Winner     *Proposal    `json:"winner,omitempty" bson:"winner,omitempty" firestore:"winner,omitempty"`
	Responses  []Response   `json:"responses,omitempty" bson:"responses,omitempty" firestore:"responses,omitempty"`
	CreatedAt  time.Time    `json:"created_at" bson:"created_at" firestore:"created_at"`
	DeadlineAt time.Time    `json:"deadline_at" bson:"deadline_at" firestore:"deadline_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty" bson:"resolved_at,omitempty" firestore:"resolved_at,omitempty"`
}

// TaskSubmission is the external request to dispatch a task to the fleet
// market.
type TaskSubmission struct {
	Category    string          `json:"category"`
	Description json.RawMessage `json:"description"`
	Fleets      []string        `json:"fleets,omitempty"`
	BidWindowMs int64           `json:"bid_window_ms,omitempty"`
}

// ExecutionReport is the winning fleet's terminal report for an awarded
// task.
type ExecutionReport struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// TaskResponse acknowledges a submission.
type TaskResponse struct {
	TaskID          string    `json:"task_id"`
	State           string    `json:"state"`
	BidWindowEndsAt time.Time `json:"bid_window_ends_at"`
	CreatedAt       time.Time `json:"created_at"`
}
