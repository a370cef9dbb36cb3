package bidding

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/siot-decada-robotics/rmf-ros2/internal/model"
)

var (
	// ErrInvalidRequest means the bid notice has no task id or no request
	// payload to announce.
	ErrInvalidRequest = errors.New("invalid bid request")
	// ErrDuplicateSession means a session for the task id is already open.
	ErrDuplicateSession = errors.New("bidding session already open")

	// DefaultResolvedTTL is how long a resolved session's tombstone is kept
	// so that late submissions are recognized and dropped quietly instead of
	// being mistaken for submissions to an unknown session.
	DefaultResolvedTTL = 10 * time.Minute
)

// ResolutionCallback is invoked exactly once per session when the session
// resolves. winner is nil when no eligible bid was collected.
type ResolutionCallback func(taskID string, winner *model.Proposal, responses []model.Response)

// Auctioneer manages one bidding session per announced task: it collects
// responses until the window deadline, evaluates whatever was collected,
// and notifies the resolution callback at most once per session.
//
// Submissions for a given session are expected to arrive through a single
// ingestion point; cross-session calls may be concurrent.
type Auctioneer struct {
	mu        sync.Mutex
	evaluator Evaluator
	sessions  map[string]*session
	resolved  *cache.Cache
	onResolve ResolutionCallback
	now       func() time.Time
}

type session struct {
	taskID    string
	deadline  time.Time
	timer     *time.Timer
	responses []model.Response
}

// NewAuctioneer creates an auctioneer with the given winner-selection
// policy. onResolve must not be nil.
func NewAuctioneer(evaluator Evaluator, onResolve ResolutionCallback) *Auctioneer {
	return &Auctioneer{
		evaluator: evaluator,
		sessions:  make(map[string]*session),
		resolved:  cache.New(DefaultResolvedTTL, time.Minute),
		onResolve: onResolve,
		now:       time.Now,
	}
}

// SetEvaluator replaces the policy for all future resolutions. Sessions
// already open resolve with the new policy.
func (a *Auctioneer) SetEvaluator(evaluator Evaluator) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evaluator = evaluator
}

// Announce opens a bidding session for the task named in the notice and
// returns the session id (the task id). The session resolves when the
// window elapses, or earlier through Close.
func (a *Auctioneer) Announce(notice model.BidNotice) (string, error) {
	if notice.TaskID == "" || len(notice.Request) == 0 {
		return "", ErrInvalidRequest
	}
	window := time.Duration(notice.TimeWindowMs) * time.Millisecond
	if window <= 0 {
		return "", fmt.Errorf("%w: non-positive bid window", ErrInvalidRequest)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, open := a.sessions[notice.TaskID]; open {
		return "", fmt.Errorf("%w: %s", ErrDuplicateSession, notice.TaskID)
	}

	s := &session{
		taskID:   notice.TaskID,
		deadline: a.now().Add(window),
	}
	s.timer = time.AfterFunc(window, func() { a.Close(notice.TaskID) })
	a.sessions[notice.TaskID] = s

	slog.Info("bidding session opened",
		"task_id", notice.TaskID,
		"category", notice.Category,
		"window_ms", notice.TimeWindowMs,
		"fleets", len(notice.Fleets),
	)
	return notice.TaskID, nil
}

// Submit appends a response to an open session. Submissions to a resolved
// or unknown session are logged and ignored: bidding tolerates late and
// duplicate deliveries without corrupting state.
func (a *Auctioneer) Submit(taskID string, response model.Response) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, open := a.sessions[taskID]
	if !open {
		if _, late := a.resolved.Get(taskID); late {
			slog.Debug("late bid ignored", "task_id", taskID)
		} else {
			slog.Warn("bid for unknown session ignored", "task_id", taskID)
		}
		return
	}
	s.responses = append(s.responses, response)
}

// Close forces resolution of a session with whatever was collected so far.
// The deadline timer calls this; callers may also close early once every
// eligible fleet has answered. Closing an already-resolved session is a
// no-op, so the resolution callback fires at most once per session.
func (a *Auctioneer) Close(taskID string) {
	a.mu.Lock()
	s, open := a.sessions[taskID]
	if !open {
		a.mu.Unlock()
		return
	}
	delete(a.sessions, taskID)
	a.resolved.SetDefault(taskID, struct{}{})
	s.timer.Stop()

	responses := s.responses
	winner := Evaluate(responses, a.evaluator)
	a.mu.Unlock()

	if winner == nil {
		slog.Info("bidding session resolved without winner",
			"task_id", taskID, "responses", len(responses))
	} else {
		slog.Info("bidding session resolved",
			"task_id", taskID,
			"winner_fleet", winner.FleetName,
			"new_cost", winner.NewCost,
			"responses", len(responses),
		)
	}

	a.onResolve(taskID, winner, responses)
}

// Cancel discards an open session without evaluating or notifying the
// resolution callback. It reports whether a session was actually open.
func (a *Auctioneer) Cancel(taskID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, open := a.sessions[taskID]
	if !open {
		return false
	}
	delete(a.sessions, taskID)
	a.resolved.SetDefault(taskID, struct{}{})
	s.timer.Stop()

	slog.Info("bidding session cancelled",
		"task_id", taskID, "responses", len(s.responses))
	return true
}

// OpenSessions returns the number of sessions still collecting bids.
func (a *Auctioneer) OpenSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}
