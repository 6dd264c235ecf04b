package models

import (
	"database/sql/driver"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/simulation"
	"time"
)

// Attempt is a completed simulation run of a learner.
type Attempt struct {
	ID               string     `db:"id"`
	LearnerID        string     `db:"learner_id"`
	ScenarioID       string     `db:"scenario_id"`
	ScenarioTitle    string     `db:"scenario_title"`
	Score            int        `db:"score"`
	Perfect          int        `db:"perfect"`
	Performance      string     `db:"performance"`
	Decisions        int        `db:"decisions"`
	CorrectDecisions int        `db:"correct_decisions"`
	TimedOut         bool       `db:"timed_out"`
	Stable           bool       `db:"stable"`
	Complications    StringList `db:"complications"`
	StartedAt        time.Time  `db:"started_at"`
	CompletedAt      time.Time  `db:"completed_at"`
}

// NewAttempt records the completed run in snap for learnerID.
func NewAttempt(learnerID string, snap simulation.Snapshot) Attempt {
	return Attempt{
		ID:               uuid.NewString(),
		LearnerID:        learnerID,
		ScenarioID:       snap.ScenarioID,
		ScenarioTitle:    snap.ScenarioTitle,
		Score:            snap.Score,
		Perfect:          snap.Perfect,
		Performance:      snap.Performance.Slug(),
		Decisions:        len(snap.History),
		CorrectDecisions: snap.CorrectDecisions(),
		TimedOut:         snap.TimedOut,
		Stable:           snap.Patient.Stable,
		Complications:    append(StringList{}, snap.Patient.Complications...),
		StartedAt:        snap.StartedAt.UTC(),
		CompletedAt:      snap.CompletedAt.UTC(),
	}
}

// IncorrectDecisions counts the decisions that were not correct, timeouts included.
func (a Attempt) IncorrectDecisions() int {
	return a.Decisions - a.CorrectDecisions
}

// Level parses the stored performance level.
func (a Attempt) Level() simulation.PerformanceLevel {
	l, err := simulation.ParsePerformanceLevel(a.Performance)
	if err != nil {
		return simulation.NeedsImprovement
	}
	return l
}

// Duration is the wall time the learner spent on the run.
func (a Attempt) Duration() time.Duration {
	return a.CompletedAt.Sub(a.StartedAt)
}

// ScenarioSummary aggregates the attempts of a learner on one scenario.
type ScenarioSummary struct {
	ScenarioID    string  `db:"scenario_id"`
	ScenarioTitle string  `db:"scenario_title"`
	Attempts      int     `db:"attempts"`
	BestScore     int     `db:"best_score"`
	AverageScore  float64 `db:"average_score"`
	TimedOut      int     `db:"timed_out"`
}

// StringList is stored as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, errors.Wrap(err, "marshal string list")
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		*l = StringList{}
		return nil
	default:
		return errors.New("unsupported string list source")
	}
	if err := json.Unmarshal(raw, (*[]string)(l)); err != nil {
		return errors.Wrap(err, "unmarshal string list")
	}
	return nil
}
