// Package audit keeps a JSON-lines trail of the operations gns3cp ran
// against each reservation.
package audit

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Event is one completed provider operation.
type Event struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	Operation   string        `json:"operation"`
	Reservation string        `json:"reservation,omitempty"`
	NodeID      string        `json:"node_id,omitempty"`
	Outcome     string        `json:"outcome,omitempty"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Filter selects events in Query. Zero fields match everything.
type Filter struct {
	Reservation string
	Operation   string
	NodeID      string
	StartTime   time.Time
	EndTime     time.Time
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent starts an event for operation on reservation.
func NewEvent(operation, reservation string) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Operation:   operation,
		Reservation: reservation,
	}
}

// WithNode sets the node the operation acted on.
func (e *Event) WithNode(nodeID string) *Event {
	e.NodeID = nodeID
	return e
}

// WithOutcome records a deploy outcome kind.
func (e *Event) WithOutcome(kind string) *Event {
	e.Outcome = kind
	return e
}

// WithResult marks the event successful when err is nil, failed otherwise.
func (e *Event) WithResult(err error) *Event {
	e.Success = err == nil
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// DefaultPath returns ~/.gns3cp/audit.log.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "gns3cp-audit.log")
	}
	return filepath.Join(home, ".gns3cp", "audit.log")
}
