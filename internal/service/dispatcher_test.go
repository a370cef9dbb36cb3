package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/siot-decada-robotics/rmf-ros2/internal/model"
	"github.com/siot-decada-robotics/rmf-ros2/internal/store"
	"github.com/siot-decada-robotics/rmf-ros2/internal/task"
	"github.com/siot-decada-robotics/rmf-ros2/internal/transport"
)

// fakeTransport records published traffic and lets tests inject responses
// as if they arrived from a fleet adapter.
type fakeTransport struct {
	mu       sync.Mutex
	notices  []model.BidNotice
	awards   map[string]model.AwardNotice
	handlers map[string]func(model.Response)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		awards:   make(map[string]model.AwardNotice),
		handlers: make(map[string]func(model.Response)),
	}
}

func (f *fakeTransport) PublishNotice(notice model.BidNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice)
	return nil
}

func (f *fakeTransport) SubscribeResponses(taskID string, handle func(model.Response)) (transport.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[taskID] = handle
	return fakeSubscription{}, nil
}

func (f *fakeTransport) PublishAward(fleetName string, award model.AwardNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awards[fleetName] = award
	return nil
}

func (f *fakeTransport) Close() {}

func (f *fakeTransport) deliver(taskID string, response model.Response) {
	f.mu.Lock()
	handle := f.handlers[taskID]
	f.mu.Unlock()
	if handle != nil {
		handle(response)
	}
}

func (f *fakeTransport) awardFor(fleet string) (model.AwardNotice, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	award, ok := f.awards[fleet]
	return award, ok
}

type fakeSubscription struct{}

func (fakeSubscription) Unsubscribe() error { return nil }

func testDispatcher(t *testing.T) (*Dispatcher, *fakeTransport, *store.MemoryStore) {
	t.Helper()
	d := task.NewDeserializer()
	task.RegisterScanZone(d)
	tp := newFakeTransport()
	st := store.NewMemoryStore()
	return New(st, tp, d), tp, st
}

func scanSubmission(windowMs int64) model.TaskSubmission {
	desc, _ := json.Marshal(task.ScanZoneDescription{
		ZoneName: "aisle_7", StartWaypoint: 1, EndWaypoint: 2,
	})
	return model.TaskSubmission{
		Category:    task.ScanZoneCategory,
		Description: desc,
		Fleets:      []string{"fleet_a", "fleet_b"},
		BidWindowMs: windowMs,
	}
}

func proposalResponse(fleet string, prev, next float64) model.Response {
	return model.Response{Proposal: &model.Proposal{
		FleetName: fleet,
		RobotName: fleet + "_r1",
		PrevCost:  prev,
		NewCost:   next,
	}}
}

func waitForState(t *testing.T, st *store.MemoryStore, taskID string, want model.AuctionState) model.AuctionOutcome {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		outcome, err := st.GetOutcome(context.Background(), taskID)
		if err == nil && outcome.State == want {
			return outcome
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached state %s", taskID, want)
	return model.AuctionOutcome{}
}

func TestSubmitTaskRejectsInvalidRequests(t *testing.T) {
	svc, _, _ := testDispatcher(t)
	ctx := context.Background()

	cases := []model.TaskSubmission{
		{},                                  // no category
		{Category: task.ScanZoneCategory},   // no description
		{Category: "teleport", Description: json.RawMessage(`{}`)}, // unknown
		{Category: task.ScanZoneCategory, // invalid description
			Description: json.RawMessage(`{"zone_name":"z","start_waypoint":3,"end_waypoint":3}`)},
	}
	for i, req := range cases {
		if _, err := svc.SubmitTask(ctx, req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("case %d: got %v, want ErrInvalidRequest", i, err)
		}
	}
}

func TestSubmitTaskOpensSessionAndPublishesNotice(t *testing.T) {
	svc, tp, st := testDispatcher(t)
	ctx := context.Background()

	resp, err := svc.SubmitTask(ctx, scanSubmission(60000))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	if resp.TaskID == "" || resp.State != "open" {
		t.Fatalf("unexpected response %+v", resp)
	}

	tp.mu.Lock()
	notices := len(tp.notices)
	tp.mu.Unlock()
	if notices != 1 {
		t.Fatalf("published %d notices, want 1", notices)
	}

	outcome, err := st.GetOutcome(ctx, resp.TaskID)
	if err != nil {
		t.Fatalf("GetOutcome: %v", err)
	}
	if outcome.State != model.AuctionOpen {
		t.Fatalf("outcome state = %s, want open", outcome.State)
	}
	if svc.Auctioneer().OpenSessions() != 1 {
		t.Fatal("no session opened")
	}
}

func TestBidResolutionAwardsWinner(t *testing.T) {
	svc, tp, st := testDispatcher(t)
	ctx := context.Background()

	resp, err := svc.SubmitTask(ctx, scanSubmission(50)) // clamped up to the minimum window
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	// fleet_b has the lower marginal cost and must win under the default
	// least-diff-cost policy.
	tp.deliver(resp.TaskID, proposalResponse("fleet_a", 10.0, 12.0))
	tp.deliver(resp.TaskID, proposalResponse("fleet_b", 7.0, 7.5))

	outcome := waitForState(t, st, resp.TaskID, model.AuctionAwarded)
	if outcome.Winner == nil || outcome.Winner.FleetName != "fleet_b" {
		t.Fatalf("winner = %+v, want fleet_b", outcome.Winner)
	}
	if len(outcome.Responses) != 2 {
		t.Fatalf("stored %d responses, want 2", len(outcome.Responses))
	}
	if outcome.ResolvedAt == nil {
		t.Fatal("resolved outcome missing resolution time")
	}

	award, ok := tp.awardFor("fleet_b")
	if !ok || award.TaskID != resp.TaskID {
		t.Fatalf("award not delivered to winner: %+v", award)
	}
	if _, ok := tp.awardFor("fleet_a"); ok {
		t.Fatal("loser must not receive an award")
	}

	total, err := svc.Ledger().FleetTotal("fleet_b")
	if err != nil {
		t.Fatalf("FleetTotal: %v", err)
	}
	if total.Awarded != 1 {
		t.Fatalf("ledger awarded = %d, want 1", total.Awarded)
	}
}

func TestDeadlineWithoutBidsResolvesUnassigned(t *testing.T) {
	svc, _, st := testDispatcher(t)
	ctx := context.Background()

	resp, err := svc.SubmitTask(ctx, scanSubmission(50))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	outcome := waitForState(t, st, resp.TaskID, model.AuctionUnassigned)
	if outcome.Winner != nil {
		t.Fatalf("unassigned outcome has winner %+v", outcome.Winner)
	}
	if svc.Auctioneer().OpenSessions() != 0 {
		t.Fatal("session not closed after deadline")
	}
}

func TestDeclinedBidsResolveUnassigned(t *testing.T) {
	svc, tp, st := testDispatcher(t)
	ctx := context.Background()

	resp, err := svc.SubmitTask(ctx, scanSubmission(50))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	tp.deliver(resp.TaskID, model.Response{Errors: []string{"battery too low"}})

	outcome := waitForState(t, st, resp.TaskID, model.AuctionUnassigned)
	if len(outcome.Responses) != 1 {
		t.Fatalf("stored %d responses, want the declined bid", len(outcome.Responses))
	}
}

func TestCancelTaskBeforeResolution(t *testing.T) {
	svc, _, _ := testDispatcher(t)
	ctx := context.Background()

	resp, err := svc.SubmitTask(ctx, scanSubmission(60000))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	outcome, err := svc.CancelTask(ctx, resp.TaskID)
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if outcome.State != model.AuctionCancelled {
		t.Fatalf("state = %s, want cancelled", outcome.State)
	}
	if svc.Auctioneer().OpenSessions() != 0 {
		t.Fatal("session still open after cancel")
	}

	if _, err := svc.CancelTask(ctx, resp.TaskID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second cancel: got %v, want ErrInvalidState", err)
	}
}

func TestReportExecutionCompletesAwardedTask(t *testing.T) {
	svc, tp, st := testDispatcher(t)
	ctx := context.Background()

	resp, err := svc.SubmitTask(ctx, scanSubmission(50))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	tp.deliver(resp.TaskID, proposalResponse("fleet_b", 7.0, 7.5))
	waitForState(t, st, resp.TaskID, model.AuctionAwarded)

	outcome, err := svc.ReportExecution(ctx, resp.TaskID, model.ExecutionReport{Success: true})
	if err != nil {
		t.Fatalf("ReportExecution: %v", err)
	}
	if outcome.State != model.AuctionCompleted {
		t.Fatalf("state = %s, want completed", outcome.State)
	}
	if outcome.Winner == nil || outcome.Winner.FleetName != "fleet_b" {
		t.Fatalf("completed outcome lost its winner: %+v", outcome.Winner)
	}

	// Only awarded tasks accept a report; the terminal state is final.
	if _, err := svc.ReportExecution(ctx, resp.TaskID, model.ExecutionReport{Success: false}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second report: got %v, want ErrInvalidState", err)
	}
}

func TestReportExecutionFailureMarksTaskFailed(t *testing.T) {
	svc, tp, st := testDispatcher(t)
	ctx := context.Background()

	resp, err := svc.SubmitTask(ctx, scanSubmission(50))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	tp.deliver(resp.TaskID, proposalResponse("fleet_a", 10.0, 12.0))
	waitForState(t, st, resp.TaskID, model.AuctionAwarded)

	outcome, err := svc.ReportExecution(ctx, resp.TaskID, model.ExecutionReport{
		Success: false, Reason: "navigation blocked",
	})
	if err != nil {
		t.Fatalf("ReportExecution: %v", err)
	}
	if outcome.State != model.AuctionFailed {
		t.Fatalf("state = %s, want failed", outcome.State)
	}
}

func TestReportExecutionRejectsOpenTask(t *testing.T) {
	svc, _, _ := testDispatcher(t)
	ctx := context.Background()

	resp, err := svc.SubmitTask(ctx, scanSubmission(60000))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	if _, err := svc.ReportExecution(ctx, resp.TaskID, model.ExecutionReport{Success: true}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
	if _, err := svc.ReportExecution(ctx, "task_missing", model.ExecutionReport{Success: true}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("got %v, want ErrTaskNotFound", err)
	}
}

func TestGetTaskUnknown(t *testing.T) {
	svc, _, _ := testDispatcher(t)
	if _, err := svc.GetTask(context.Background(), "task_missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("got %v, want ErrTaskNotFound", err)
	}
}
