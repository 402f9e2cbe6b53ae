package decision

import "time"

// Vote is a single board member's verdict on a request.
type Vote string

const (
	VoteApproved Vote = "approved"
	VoteRejected Vote = "rejected"
)

// Valid reports whether the vote is a known value.
func (v Vote) Valid() bool {
	return v == VoteApproved || v == VoteRejected
}

// Decision records one board member's vote on one request. A member holds at
// most one decision per request; a re-vote replaces the vote while CreatedAt
// keeps the original recording time, which preserves first-decision ordering.
type Decision struct {
	ID        string    `json:"id" db:"id"`
	RequestID string    `json:"request_id" db:"request_id"`
	VoterID   string    `json:"voter_id" db:"voter_id"`
	Vote      Vote      `json:"vote" db:"vote"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
