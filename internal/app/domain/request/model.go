package request

import "time"

// Kind classifies a request for aggregation purposes.
type Kind string

const (
	KindMonetary    Kind = "monetary"
	KindNonMonetary Kind = "non-monetary"
)

// Valid reports whether the kind is a known classification.
func (k Kind) Valid() bool {
	return k == KindMonetary || k == KindNonMonetary
}

// Status is the aggregate outcome of the decisions recorded for a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Request is a submission awaiting board decisions. Outside an in-flight
// transaction its Status always matches what the aggregator computes from the
// recorded decisions.
type Request struct {
	ID          string    `json:"id" db:"id"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Kind        Kind      `json:"type" db:"kind"`
	Amount      *float64  `json:"amount,omitempty" db:"amount"`
	Status      Status    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
