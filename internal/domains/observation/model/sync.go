package model

import "time"

// SyncState is the preloaded snapshot of one locally known external record.
type SyncState struct {
	ID                 int64
	ModifiedBy         *int64
	WNModifiedDatetime *time.Time
	HasEradicationDate bool
	WNClusterID        *int64
}

// SyncIndex maps external id to its local snapshot.
type SyncIndex map[int64]SyncState

// SyncSummary is the outcome of one reconciler run. It is stored as the
// task result.
type SyncSummary struct {
	RunID       string    `json:"run_id"`
	WindowStart time.Time `json:"window_start"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	Fetched   int `json:"fetched"`
	Rejected  int `json:"rejected"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	// Skipped counts records whose local row was last touched by a person.
	Skipped int `json:"skipped"`

	ClustersTouched   int `json:"clusters_touched"`
	VisibilityChanged int `json:"visibility_changed"`

	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abort_reason,omitempty"`
}

// ClusterMember is the minimum needed to decide visibility.
type ClusterMember struct {
	ID                  int64
	ClusterID           int64
	ObservationDatetime time.Time
	Visible             bool
}

// VisibilityChange is one row the visibility pass must rewrite.
type VisibilityChange struct {
	ID      int64
	Visible bool
}

// ComputeVisibility returns the rows whose visible flag must change so that
// each cluster has exactly one visible member: the most recent observation,
// lowest id on ties.
func ComputeVisibility(members []ClusterMember) []VisibilityChange {
	winners := make(map[int64]ClusterMember)
	for _, m := range members {
		w, ok := winners[m.ClusterID]
		if !ok ||
			m.ObservationDatetime.After(w.ObservationDatetime) ||
			(m.ObservationDatetime.Equal(w.ObservationDatetime) && m.ID < w.ID) {
			winners[m.ClusterID] = m
		}
	}

	var changes []VisibilityChange
	for _, m := range members {
		want := winners[m.ClusterID].ID == m.ID
		if m.Visible != want {
			changes = append(changes, VisibilityChange{ID: m.ID, Visible: want})
		}
	}
	return changes
}
