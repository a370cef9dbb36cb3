// Package ledger keeps per-fleet cost accounting for awarded tasks. Costs
// arrive as float64 proposals but are accumulated as decimals so fleet
// totals stay exact over long dispatcher uptimes.
package ledger

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnknownFleet = errors.New("ledger: unknown fleet")

// Entry records one awarded task against a fleet.
type Entry struct {
	TaskID     string          `json:"task_id"`
	FleetName  string          `json:"fleet_name"`
	RobotName  string          `json:"robot_name"`
	CostDelta  decimal.Decimal `json:"cost_delta"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// FleetTotal is a fleet's accumulated awarded cost.
type FleetTotal struct {
	FleetName string          `json:"fleet_name"`
	Awarded   int             `json:"awarded"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// Ledger accumulates awarded cost deltas per fleet.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
	totals  map[string]FleetTotal
}

func New() *Ledger {
	return &Ledger{totals: make(map[string]FleetTotal)}
}

// Record books the cost delta of an awarded task against the winning
// fleet. The delta is the winner's new cost minus its previous cost, the
// marginal cost the fleet takes on by accepting the task.
func (l *Ledger) Record(taskID, fleetName, robotName string, prevCost, newCost float64, at time.Time) Entry {
	delta := decimal.NewFromFloat(newCost).Sub(decimal.NewFromFloat(prevCost))

	entry := Entry{
		TaskID:     taskID,
		FleetName:  fleetName,
		RobotName:  robotName,
		CostDelta:  delta,
		RecordedAt: at,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	total := l.totals[fleetName]
	total.FleetName = fleetName
	total.Awarded++
	total.TotalCost = total.TotalCost.Add(delta)
	l.totals[fleetName] = total
	l.mu.Unlock()

	slog.Info("award recorded",
		"task_id", taskID,
		"fleet", fleetName,
		"robot", robotName,
		"cost_delta", delta.String(),
	)
	return entry
}

// FleetTotal returns the accumulated total for one fleet.
func (l *Ledger) FleetTotal(fleetName string) (FleetTotal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total, ok := l.totals[fleetName]
	if !ok {
		return FleetTotal{}, ErrUnknownFleet
	}
	return total, nil
}

// Totals returns every fleet's accumulated total, sorted by fleet name.
func (l *Ledger) Totals() []FleetTotal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	totals := make([]FleetTotal, 0, len(l.totals))
	for _, t := range l.totals {
		totals = append(totals, t)
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].FleetName < totals[j].FleetName
	})
	return totals
}

// Entries returns a copy of the award history, oldest first.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}
