package workflow

import (
	"github.com/swiftel/request-handler/internal/app/domain/decision"
	"github.com/swiftel/request-handler/internal/app/domain/request"
)

// Resolve computes the status a request should hold given the decisions
// recorded for it and the current number of active board members. It is pure:
// the engine owns all reads and writes around it.
//
// Non-monetary requests are settled by the first decision ever recorded.
// Monetary requests require a unanimous vote from every active board member;
// until the decision count matches the live board size, or while votes
// disagree, the request stays pending. A board of zero can never reach
// unanimity, so the request stays pending indefinitely.
func Resolve(kind request.Kind, decisions []decision.Decision, boardSize int) request.Status {
	if kind != request.KindMonetary {
		if len(decisions) == 0 {
			return request.StatusPending
		}
		return statusForVote(decisions[0].Vote)
	}

	// The board size is read live at aggregation time. If membership shrank
	// below the number of recorded decisions the counts no longer match and
	// the request stays pending, same as when votes are still outstanding.
	if boardSize == 0 || len(decisions) != boardSize {
		return request.StatusPending
	}

	first := decisions[0].Vote
	for _, d := range decisions[1:] {
		if d.Vote != first {
			return request.StatusPending
		}
	}
	return statusForVote(first)
}

func statusForVote(v decision.Vote) request.Status {
	if v == decision.VoteApproved {
		return request.StatusApproved
	}
	return request.StatusRejected
}
