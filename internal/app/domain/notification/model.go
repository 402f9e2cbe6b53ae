package notification

import "time"

// Notification is a durable message for a user. The stored row is the
// authoritative record; live websocket delivery is best-effort on top of it.
// DeliveredAt is set once the message reached a live channel (or was read).
type Notification struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Message     string     `json:"message" db:"message"`
	Link        string     `json:"link,omitempty" db:"link"`
	Read        bool       `json:"read" db:"read"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
