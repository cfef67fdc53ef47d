package queue

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the clinical urgency rank. 1 is most urgent.
type Severity int

const (
	SeverityEmergency Severity = 1
	SeverityUrgent    Severity = 2
	SeverityRoutine   Severity = 3
)

func (s Severity) Valid() bool {
	return s >= SeverityEmergency && s <= SeverityRoutine
}

func (s Severity) Label() string {
	switch s {
	case SeverityEmergency:
		return "Emergency"
	case SeverityUrgent:
		return "Urgent"
	case SeverityRoutine:
		return "Routine"
	default:
		return "Unknown"
	}
}

type EntryStatus string

const (
	StatusWaiting   EntryStatus = "Waiting"
	StatusServing   EntryStatus = "Serving"
	StatusCompleted EntryStatus = "Completed"
	StatusAbsent    EntryStatus = "Absent"
)

// transitions: Waiting -> Serving | Absent; Serving -> Completed | Absent.
// No way back to Waiting, and terminal states have no edges.
var transitions = map[EntryStatus][]EntryStatus{
	StatusWaiting: {StatusServing, StatusAbsent},
	StatusServing: {StatusCompleted, StatusAbsent},
}

func CanTransition(from, to EntryStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Entry is one walk-in patient in the priority queue. Entries are retained
// after terminal transitions for history, never deleted.
type Entry struct {
	ID          uuid.UUID
	PatientName string
	Severity    Severity
	ArrivalTime time.Time
	Status      EntryStatus
	ServedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Summary describes the current queue for the display board.
type Summary struct {
	WaitingTotal   int
	WaitingByLevel map[Severity]int
	Serving        *Entry
}
