package progress

import "time"

// Record is the progress of one learning component. ComponentID is the merge key.
type Record struct {
	ComponentID string    `json:"componentId"`
	Completed   bool      `json:"completed"`
	Score       *float64  `json:"score,omitempty"`
	TimeSpent   int64     `json:"timeSpent"`
	LastVisited time.Time `json:"lastVisited"`
	Attempts    int       `json:"attempts"`
}

// Update is a partial record. Nil fields are left unchanged.
type Update struct {
	Completed   *bool      `json:"completed,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	TimeSpent   *int64     `json:"timeSpent,omitempty"`
	Attempts    *int       `json:"attempts,omitempty"`
	LastVisited *time.Time `json:"lastVisited,omitempty"`
}

// Apply returns r with the set fields of u. LastVisited becomes now unless u sets it.
func (u Update) Apply(r Record, now time.Time) Record {
	if u.Completed != nil {
		r.Completed = *u.Completed
	}
	if u.Score != nil {
		score := *u.Score
		r.Score = &score
	}
	if u.TimeSpent != nil {
		r.TimeSpent = *u.TimeSpent
	}
	if u.Attempts != nil {
		r.Attempts = *u.Attempts
	}
	r.LastVisited = now.UTC()
	if u.LastVisited != nil {
		r.LastVisited = u.LastVisited.UTC()
	}
	return r
}

type Resolution string

const (
	ResolutionLocal  Resolution = "local"
	ResolutionRemote Resolution = "remote"
	ResolutionMerge  Resolution = "merge"
)

// Conflict records how one component present on both sides was resolved.
type Conflict struct {
	Local      Record     `json:"local"`
	Remote     Record     `json:"remote"`
	Resolution Resolution `json:"resolution"`
}

// Result is the outcome of Resolve.
type Result struct {
	Resolved  map[string]Record `json:"resolved"`
	Conflicts []Conflict        `json:"conflicts"`
}

// SyncData is the server's answer to a sync.
type SyncData struct {
	ComponentProgress map[string]Record `json:"componentProgress"`
	Conflicts         []Conflict        `json:"conflicts,omitempty"`
	LastSyncedAt      time.Time         `json:"lastSyncedAt"`
	Version           int64             `json:"version"`
}

// Wire envelopes.
type (
	allEnvelope struct {
		Progress map[string]Record `json:"progress"`
	}
	recordEnvelope struct {
		Progress *Record `json:"progress"`
	}
	syncRequest struct {
		Progress map[string]Record `json:"progress"`
	}
)

// QueuedUpdate is an update waiting in the outbox.
type QueuedUpdate struct {
	ID          int64     `json:"id"`
	ComponentID string    `json:"componentId"`
	Update      Update    `json:"progress"`
	Timestamp   time.Time `json:"timestamp"`
}
