package bidding

import (
	"github.com/siot-decada-robotics/rmf-ros2/internal/model"
)

// Evaluator ranks competing proposals through a single pairwise rule.
// Implementations must be stateless and must not mutate their inputs:
// evaluation may run while submissions are still arriving for other
// sessions.
type Evaluator interface {
	// Better reports whether a should replace b as the winning candidate.
	// The comparison must be strict so that under the fold in Evaluate the
	// first-submitted of equally ranked proposals keeps the win.
	Better(a, b model.Proposal) bool
}

// LeastFleetDiffCostEvaluator picks the proposal with the smallest marginal
// cost (NewCost - PrevCost).
type LeastFleetDiffCostEvaluator struct{}

func (LeastFleetDiffCostEvaluator) Better(a, b model.Proposal) bool {
	return a.NewCost-a.PrevCost < b.NewCost-b.PrevCost
}

// LeastFleetCostEvaluator picks the proposal with the smallest NewCost.
type LeastFleetCostEvaluator struct{}

func (LeastFleetCostEvaluator) Better(a, b model.Proposal) bool {
	return a.NewCost < b.NewCost
}

// QuickestFinishEvaluator picks the proposal with the earliest finish time.
type QuickestFinishEvaluator struct{}

func (QuickestFinishEvaluator) Better(a, b model.Proposal) bool {
	return a.FinishTime.Before(b.FinishTime)
}

// Evaluate folds the eligible responses through the evaluator's pairwise
// rule and returns the winning proposal, or nil when no response is
// eligible. Zero eligible bidders is a normal outcome, not an error.
//
// Responses with errors or without a proposal are excluded before the fold.
// Field values are compared as submitted; range validation is the
// submitter's responsibility.
func Evaluate(responses []model.Response, evaluator Evaluator) *model.Proposal {
	var best *model.Proposal
	for i := range responses {
		if !responses[i].Eligible() {
			continue
		}
		candidate := *responses[i].Proposal
		if best == nil || evaluator.Better(candidate, *best) {
			best = &candidate
		}
	}
	return best
}
