package domain

import "time"

// A FilterEvent records one applied filter pass.
type FilterEvent struct {
	EventID    string
	SessionID  string
	OccurredAt time.Time
	State      FilterState
	Visible    int
	Total      int
}
