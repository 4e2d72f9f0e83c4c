package types

import "time"

// StatusChange records a single order status transition for the audit trail.
type StatusChange struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// StatusHistory is the append-only transition log stored on each order.
// Entries are never edited or removed once written.
type StatusHistory []StatusChange

// Append returns the history with a new entry added. The receiver is not
// mutated so callers can keep the prior snapshot.
func (h StatusHistory) Append(status, source string, at time.Time) StatusHistory {
	out := make(StatusHistory, 0, len(h)+1)
	out = append(out, h...)
	out = append(out, StatusChange{
		Status:    status,
		Timestamp: at.UTC(),
		Source:    source,
	})
	return out
}

// Last returns the most recent entry, if any.
func (h StatusHistory) Last() (StatusChange, bool) {
	if len(h) == 0 {
		return StatusChange{}, false
	}
	return h[len(h)-1], true
}
