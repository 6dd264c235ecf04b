package simulation

import (
	"context"
	"time"
)

// EventType names a session state change.
type EventType string

const (
	EventStarted   EventType = "started"
	EventDecided   EventType = "decided"
	EventTicked    EventType = "ticked"
	EventTimedOut  EventType = "timed_out"
	EventCompleted EventType = "completed"
	EventReset     EventType = "reset"
)

// Event is delivered to observers after the session lock has been released.
type Event struct {
	Type EventType
	At   time.Time
	// Snapshot is the session state right after the change.
	Snapshot Snapshot
}

// Observer is notified about session events. Implementations must not call back into the session synchronously
// from a ticked event.
type Observer interface {
	OnEvent(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to [Observer].
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) OnEvent(ctx context.Context, e Event) {
	f(ctx, e)
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ID            string           `json:"id"`
	State         State            `json:"state"`
	ScenarioID    string           `json:"scenarioId,omitempty"`
	ScenarioTitle string           `json:"scenarioTitle,omitempty"`
	Current       *DecisionPoint   `json:"current,omitempty"`
	Remaining     *int             `json:"remaining,omitempty"`
	Score         int              `json:"score"`
	Perfect       int              `json:"perfect,omitempty"`
	Patient       PatientStatus    `json:"patient"`
	History       []HistoryEntry   `json:"history"`
	Complete      bool             `json:"complete"`
	Performance   PerformanceLevel `json:"performance"`
	TimedOut      bool             `json:"timedOut"`
	StartedAt     time.Time        `json:"startedAt"`
	CompletedAt   time.Time        `json:"completedAt"`
}

// Duration is the time between start and completion or zero while the run is still going.
func (s Snapshot) Duration() time.Duration {
	if s.CompletedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// CorrectDecisions counts the history entries where the learner picked a correct option.
func (s Snapshot) CorrectDecisions() int {
	n := 0
	for _, h := range s.History {
		if h.Correct {
			n++
		}
	}
	return n
}
