package models

import "fmt"

// MissionStatus is the state of a MissionProgress row.
// not_started -> pending on proof submission, pending -> completed on approval,
// pending -> not_started on rejection.
type MissionStatus string

const (
	StatusNotStarted MissionStatus = "not_started"
	StatusPending    MissionStatus = "pending"
	StatusCompleted  MissionStatus = "completed"
)

var AllStatuses = []MissionStatus{StatusNotStarted, StatusPending, StatusCompleted}

func (s MissionStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusPending, StatusCompleted:
		return true
	}
	return false
}

func ParseMissionStatus(s string) (MissionStatus, error) {
	st := MissionStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown mission status %q", s)
	}
	return st, nil
}

// StatusFromLegacy maps the old boolean is_completed column.
func StatusFromLegacy(completed bool) MissionStatus {
	if completed {
		return StatusCompleted
	}
	return StatusNotStarted
}
