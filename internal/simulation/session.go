package simulation

import (
	"context"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/logging"
	"io"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrInvalidState      = errors.NewSentinel("invalid session state")
	ErrInvalidOption     = errors.NewSentinel("invalid option")
	ErrEmptyDecisionTree = errors.NewSentinel("empty decision tree")
	ErrStaleTimer        = errors.NewSentinel("stale timer")
)

// State is the lifecycle phase of a session.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HistoryEntry records one resolved decision. Timeouts are recorded with TimedOut set and no option.
type HistoryEntry struct {
	DecisionID   string    `json:"decisionId"`
	Question     string    `json:"question"`
	OptionID     string    `json:"optionId,omitempty"`
	Choice       string    `json:"choice,omitempty"`
	BranchID     string    `json:"branchId"`
	Condition    string    `json:"condition,omitempty"`
	Consequences []string  `json:"consequences"`
	Explanation  string    `json:"explanation,omitempty"`
	Correct      bool      `json:"correct"`
	Points       int       `json:"points"`
	TimedOut     bool      `json:"timedOut"`
	At           time.Time `json:"at"`
}

// PatientStatus is the running clinical condition of the simulated patient.
type PatientStatus struct {
	Stable        bool     `json:"stable"`
	Complications []string `json:"complications"`
	Improvements  []string `json:"improvements"`
}

func (p PatientStatus) clone() PatientStatus {
	return PatientStatus{
		Stable:        p.Stable,
		Complications: append([]string{}, p.Complications...),
		Improvements:  append([]string{}, p.Improvements...),
	}
}

// Session is one learner's run through a scenario. All methods are safe for concurrent use.
type Session struct {
	id        string
	clock     Clock
	resolver  Resolver
	logger    *slog.Logger
	observers []Observer

	mu          sync.Mutex
	scenario    *Scenario
	state       State
	current     *DecisionPoint
	history     []HistoryEntry
	score       int
	remaining   int
	timed       bool
	timedOut    bool
	patient     PatientStatus
	token       Token
	countdown   *Countdown
	startedAt   time.Time
	completedAt time.Time
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithClock replaces the wall clock. Used by tests to drive countdowns by hand.
func WithClock(c Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithObserver registers an observer that is notified about every event of the session.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) { s.observers = append(s.observers, o) }
}

// WithLogger sets the logger used for countdown callbacks that have no caller to return errors to.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithID sets the identifier reported in snapshots and events.
func WithID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// NewSession creates a session in the not started state.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{ //nolint:exhaustruct // zero values are the not started state
		clock:    SystemClock,
		resolver: Resolver{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		patient:  PatientStatus{Stable: true, Complications: nil, Improvements: nil},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the identifier given with [WithID].
func (s *Session) ID() string {
	return s.id
}

// Start begins scenario from its root decision point. Any previous run is discarded, whatever state it was in.
func (s *Session) Start(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.Wrap(ErrEmptyDecisionTree, "start without scenario")
	}
	root := scenario.Root()
	if root == nil {
		return errors.Wrap(ErrEmptyDecisionTree, "start", slog.String("scenario", scenario.ID))
	}

	s.mu.Lock()
	s.clearLocked()
	s.scenario = scenario
	s.state = StateInProgress
	s.startedAt = s.clock.Now()
	s.enterLocked(root)
	ev := s.eventLocked(EventStarted)
	s.mu.Unlock()

	s.notify(ctx, ev)
	return nil
}

// Choose resolves optionID at the current decision point.
func (s *Session) Choose(ctx context.Context, optionID string) error {
	s.mu.Lock()
	if s.state != StateInProgress {
		state := s.state
		s.mu.Unlock()
		return errors.Wrap(ErrInvalidState, "choose", slog.String("state", state.String()))
	}
	option, ok := s.current.Option(optionID)
	if !ok {
		decision := s.current.ID
		s.mu.Unlock()
		return errors.Wrap(ErrInvalidOption, "choose",
			slog.String("option", optionID), slog.String("decision", decision))
	}
	outcome, err := s.resolver.Resolve(s.scenario, option)
	if err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "resolve option")
	}

	s.stopCountdownLocked()
	s.history = append(s.history, HistoryEntry{
		DecisionID:   s.current.ID,
		Question:     s.current.Question,
		OptionID:     option.ID,
		Choice:       option.Text,
		BranchID:     outcome.Branch.ID,
		Condition:    outcome.Branch.Condition,
		Consequences: append([]string{}, outcome.Branch.Consequences...),
		Explanation:  option.Explanation,
		Correct:      option.Correct,
		Points:       outcome.Points,
		TimedOut:     false,
		At:           s.clock.Now(),
	})
	s.score += outcome.Points
	if len(outcome.Branch.Consequences) > 0 {
		if option.Correct {
			s.patient.Improvements = append(s.patient.Improvements, outcome.Branch.Consequences...)
		} else {
			s.patient.Stable = false
			s.patient.Complications = append(s.patient.Complications, outcome.Branch.Consequences...)
		}
	}

	events := []Event{}
	if outcome.Next != nil {
		s.enterLocked(outcome.Next)
		events = append(events, s.eventLocked(EventDecided))
	} else {
		s.completeLocked()
		events = append(events, s.eventLocked(EventDecided), s.eventLocked(EventCompleted))
	}
	s.mu.Unlock()

	s.notify(ctx, events...)
	return nil
}

// Timeout applies the timeout penalty and ends the run. token must be the token of the active countdown; a timeout
// of a superseded countdown fails with [ErrStaleTimer] and leaves the session untouched.
func (s *Session) Timeout(ctx context.Context, token Token) error {
	s.mu.Lock()
	if s.state != StateInProgress {
		state := s.state
		s.mu.Unlock()
		return errors.Wrap(ErrInvalidState, "timeout", slog.String("state", state.String()))
	}
	if !s.timed || token != s.token {
		s.mu.Unlock()
		return errors.Wrap(ErrStaleTimer, "timeout", slog.Uint64("token", uint64(token)))
	}

	outcome := s.resolver.ResolveTimeout()
	s.stopCountdownLocked()
	s.history = append(s.history, HistoryEntry{
		DecisionID:   s.current.ID,
		Question:     s.current.Question,
		OptionID:     "",
		Choice:       "",
		BranchID:     outcome.Branch.ID,
		Condition:    outcome.Branch.Condition,
		Consequences: append([]string{}, outcome.Branch.Consequences...),
		Explanation:  "",
		Correct:      false,
		Points:       outcome.Points,
		TimedOut:     true,
		At:           s.clock.Now(),
	})
	s.score += outcome.Points
	s.patient.Stable = false
	s.patient.Complications = append(s.patient.Complications, outcome.Branch.Consequences...)
	s.timedOut = true
	s.completeLocked()
	events := []Event{s.eventLocked(EventTimedOut), s.eventLocked(EventCompleted)}
	s.mu.Unlock()

	s.notify(ctx, events...)
	return nil
}

// Reset discards the run and returns to the not started state. Reset is valid in every state.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.clearLocked()
	ev := s.eventLocked(EventReset)
	s.mu.Unlock()

	s.notify(ctx, ev)
}

// Scenario returns the scenario of the current run or nil before the first start.
func (s *Session) Scenario() *Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenario
}

// State returns the lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentDecisionPoint returns the active decision point. It is absent unless the run is in progress.
func (s *Session) CurrentDecisionPoint() (*DecisionPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return nil, false
	}
	return s.current, true
}

// RemainingTime returns the seconds left on the active decision point. It is absent when the decision point is
// untimed or the run is not in progress.
func (s *Session) RemainingTime() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress || !s.timed {
		return 0, false
	}
	return s.remaining, true
}

// Score returns the running total of awarded points.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// PatientStatus returns a copy of the patient condition.
func (s *Session) PatientStatus() PatientStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patient.clone()
}

// History returns a copy of the resolved decisions in order.
func (s *Session) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneHistory(s.history)
}

// IsComplete reports whether the run has ended.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateComplete
}

// PerformanceLevel grades the finished run. It fails with [ErrInvalidState] until the run is complete.
func (s *Session) PerformanceLevel() (PerformanceLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete {
		return NeedsImprovement, errors.Wrap(ErrInvalidState, "performance level",
			slog.String("state", s.state.String()))
	}
	return Evaluate(s.score, s.scenario.Rubric), nil
}

// Snapshot returns a consistent copy of the whole session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:            s.id,
		State:         s.state,
		ScenarioID:    "",
		ScenarioTitle: "",
		Current:       nil,
		Remaining:     nil,
		Score:         s.score,
		Perfect:       0,
		Patient:       s.patient.clone(),
		History:       cloneHistory(s.history),
		Complete:      s.state == StateComplete,
		Performance:   NeedsImprovement,
		TimedOut:      s.timedOut,
		StartedAt:     s.startedAt,
		CompletedAt:   s.completedAt,
	}
	if s.scenario != nil {
		snap.ScenarioID = s.scenario.ID
		snap.ScenarioTitle = s.scenario.Title
		snap.Perfect = s.scenario.Rubric.Perfect
		snap.Performance = Evaluate(s.score, s.scenario.Rubric)
	}
	if s.state == StateInProgress {
		snap.Current = s.current
		if s.timed {
			remaining := s.remaining
			snap.Remaining = &remaining
		}
	}
	return snap
}

// enterLocked makes dp the active decision point and starts its countdown when it is timed.
func (s *Session) enterLocked(dp *DecisionPoint) {
	s.current = dp
	s.timed = dp.Timed()
	s.remaining = dp.TimeLimit
	// Every new decision point gets a fresh token, timed or not, so late callbacks of the previous one are stale.
	s.token++
	if s.timed {
		s.countdown = StartCountdown(s.clock, s.token, dp.TimeLimit, s.onTick, s.onTimeout)
	}
}

func (s *Session) completeLocked() {
	s.stopCountdownLocked()
	s.state = StateComplete
	s.current = nil
	s.timed = false
	s.remaining = 0
	s.completedAt = s.clock.Now()
}

func (s *Session) stopCountdownLocked() {
	if s.countdown != nil {
		s.countdown.Cancel()
		s.countdown = nil
	}
	s.token++
}

func (s *Session) clearLocked() {
	s.stopCountdownLocked()
	s.scenario = nil
	s.state = StateNotStarted
	s.current = nil
	s.history = nil
	s.score = 0
	s.remaining = 0
	s.timed = false
	s.timedOut = false
	s.patient = PatientStatus{Stable: true, Complications: nil, Improvements: nil}
	s.startedAt = time.Time{}
	s.completedAt = time.Time{}
}

func (s *Session) eventLocked(t EventType) Event {
	return Event{Type: t, At: s.clock.Now(), Snapshot: s.snapshotLocked()}
}

func (s *Session) onTick(token Token, remaining int) {
	s.mu.Lock()
	if s.state != StateInProgress || token != s.token {
		s.mu.Unlock()
		return
	}
	s.remaining = remaining
	ev := s.eventLocked(EventTicked)
	s.mu.Unlock()

	s.notify(s.callbackContext(), ev)
}

func (s *Session) onTimeout(token Token) {
	ctx := s.callbackContext()
	if err := s.Timeout(ctx, token); err != nil {
		// The learner decided or reset in the same instant. Their action stands.
		s.logger.LogAttrs(ctx, slog.LevelDebug, "countdown expired after decision", errors.SlogError(err))
	}
}

func (s *Session) callbackContext() context.Context {
	return logging.WithAttrs(context.Background(), slog.String("simulation_id", s.id))
}

func (s *Session) notify(ctx context.Context, events ...Event) {
	for _, ev := range events {
		for _, o := range s.observers {
			o.OnEvent(ctx, ev)
		}
	}
}

func cloneHistory(h []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(h))
	for i, e := range h {
		e.Consequences = append([]string{}, e.Consequences...)
		out[i] = e
	}
	return out
}
