package simulation

import (
	"github.com/medcircle/medresident/internal/errors"
	"log/slog"
)

const (
	// TimeoutPenalty is added to the score when the countdown of a decision point runs out.
	TimeoutPenalty = -10
	// TimeoutComplication is recorded on the patient when the countdown of a decision point runs out.
	TimeoutComplication = "Kritik zaman aşıldı - hasta durumu kötüleşti"
)

// Outcome is the resolved effect of choosing an option.
type Outcome struct {
	Branch Branch
	Points int
	// Next is the decision point to continue with or nil when the scenario ends.
	Next *DecisionPoint
}

// Resolver maps a chosen option to its outcome. Branch selection is deterministic: the first branch always wins and
// only its first follow-up decision point is visited.
type Resolver struct{}

// Resolve returns the outcome of picking option inside scenario.
func (Resolver) Resolve(scenario *Scenario, option *Option) (Outcome, error) {
	if len(option.Branches) == 0 {
		return Outcome{}, errors.Wrap(ErrInvalidScenario, "option without branches", slog.String("option", option.ID))
	}
	branch := option.Branches[0]
	out := Outcome{Branch: branch, Points: option.Points, Next: nil}
	if len(branch.Next) == 0 {
		return out, nil
	}
	next, ok := scenario.DecisionPoint(branch.Next[0])
	if !ok {
		return Outcome{}, errors.Wrap(ErrInvalidScenario, "unresolved next decision point",
			slog.String("branch", branch.ID), slog.String("next", branch.Next[0]))
	}
	out.Next = next
	return out, nil
}

// ResolveTimeout returns the synthetic outcome of letting the countdown of a decision point expire.
func (Resolver) ResolveTimeout() Outcome {
	return Outcome{
		Branch: Branch{
			ID:           "timeout",
			Condition:    "",
			Probability:  1,
			Consequences: []string{TimeoutComplication},
			Next:         nil,
		},
		Points: TimeoutPenalty,
		Next:   nil,
	}
}
