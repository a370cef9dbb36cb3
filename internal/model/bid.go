package model

import (
	"encoding/json"
	"time"
)

// Proposal is one fleet's bid for one task. NewCost is the fleet's marginal
// cost of accepting the task and PrevCost is its cost before the task.
// RobotName may be empty, meaning the fleet has not committed a specific
// robot yet.
type Proposal struct {
	FleetName  string    `json:"fleet_name" bson:"fleet_name"`
	RobotName  string    `json:"robot_name,omitempty" bson:"robot_name,omitempty"`
	PrevCost   float64   `json:"prev_cost" bson:"prev_cost"`
	NewCost    float64   `json:"new_cost" bson:"new_cost"`
	FinishTime time.Time `json:"finish_time" bson:"finish_time"`
}

// Response is a fleet's reply to a bid notice: a proposal, a list of
// human-readable rejection reasons, or both. A response with errors is a
// declined bid even when a proposal is attached.
type Response struct {
	Proposal *Proposal `json:"proposal,omitempty" bson:"proposal,omitempty"`
	Errors   []string  `json:"errors,omitempty" bson:"errors,omitempty"`
}

// Eligible reports whether the response can enter evaluation.
func (r Response) Eligible() bool {
	return r.Proposal != nil && len(r.Errors) == 0
}

// BidNotice announces one task to the eligible fleets and opens the bid
// window.
type BidNotice struct {
	TaskID       string          `json:"task_id" bson:"task_id"`
	Category     string          `json:"category" bson:"category"`
	Request      json.RawMessage `json:"request" bson:"request"`
	Fleets       []string        `json:"fleets,omitempty" bson:"fleets,omitempty"`
	TimeWindowMs int64           `json:"time_window_ms" bson:"time_window_ms"`
}

// AwardNotice tells the winning fleet it has the task.
type AwardNotice struct {
	TaskID    string    `json:"task_id"`
	Winner    Proposal  `json:"winner"`
	AwardedAt time.Time `json:"awarded_at"`
}
