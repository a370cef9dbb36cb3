package events

import "time"

// Event envelope for all events
type Envelope struct {
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	SchemaVersion  string         `json:"schema_version"`
	IdempotencyKey string         `json:"idempotency_key"`
	Timestamp      time.Time      `json:"timestamp"`
	Source         string         `json:"source"`
	Data           map[string]any `json:"data"`
}

// Task lifecycle events
type TaskAnnouncedData struct {
	TaskID          string    `json:"task_id"`
	Category        string    `json:"category"`
	Fleets          []string  `json:"fleets,omitempty"`
	BidWindowMs     int64     `json:"bid_window_ms"`
	BidWindowEndsAt time.Time `json:"bid_window_ends_at"`
}

type TaskAwardedData struct {
	TaskID     string    `json:"task_id"`
	FleetName  string    `json:"fleet_name"`
	RobotName  string    `json:"robot_name"`
	PrevCost   float64   `json:"prev_cost"`
	NewCost    float64   `json:"new_cost"`
	FinishTime time.Time `json:"finish_time"`
	BidCount   int       `json:"bid_count"`
}

type TaskUnassignedData struct {
	TaskID   string `json:"task_id"`
	Category string `json:"category"`
	BidCount int    `json:"bid_count"`
}

type TaskCancelledData struct {
	TaskID      string    `json:"task_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type TaskCompletedData struct {
	TaskID      string    `json:"task_id"`
	FleetName   string    `json:"fleet_name"`
	RobotName   string    `json:"robot_name"`
	CompletedAt time.Time `json:"completed_at"`
}

type TaskFailedData struct {
	TaskID    string `json:"task_id"`
	FleetName string `json:"fleet_name"`
	RobotName string `json:"robot_name"`
	Reason    string `json:"reason"`
}

// Event type constants
const (
	EventTaskAnnounced  = "task.announced"
	EventTaskAwarded    = "task.awarded"
	EventTaskUnassigned = "task.unassigned"
	EventTaskCancelled  = "task.cancelled"
	EventTaskCompleted  = "task.completed"
	EventTaskFailed     = "task.failed"
)
