package simulation

import (
	"github.com/medcircle/medresident/internal/errors"
	"log/slog"
)

// PerformanceLevel grades a finished run.
type PerformanceLevel int

const (
	NeedsImprovement PerformanceLevel = iota
	Passing
	Good
	Excellent
)

// String returns the Turkish label shown to learners.
func (l PerformanceLevel) String() string {
	switch l {
	case Excellent:
		return "Mükemmel"
	case Good:
		return "İyi"
	case Passing:
		return "Geçer"
	case NeedsImprovement:
		return "Geliştirilmeli"
	default:
		return "N/A"
	}
}

// Slug is the stable identifier used in storage, metrics and the JSON API.
func (l PerformanceLevel) Slug() string {
	switch l {
	case Excellent:
		return "excellent"
	case Good:
		return "good"
	case Passing:
		return "passing"
	case NeedsImprovement:
		return "needs_improvement"
	default:
		return "unknown"
	}
}

func (l PerformanceLevel) MarshalText() ([]byte, error) {
	return []byte(l.Slug()), nil
}

// ParsePerformanceLevel is the inverse of [PerformanceLevel.Slug].
func ParsePerformanceLevel(slug string) (PerformanceLevel, error) {
	for _, l := range []PerformanceLevel{Excellent, Good, Passing, NeedsImprovement} {
		if l.Slug() == slug {
			return l, nil
		}
	}
	return NeedsImprovement, errors.New("unknown performance level", slog.String("slug", slug))
}

// Evaluate grades score as a percentage of the rubric's perfect score. The thresholds are fixed at 90, 75 and 60
// percent and inclusive.
func Evaluate(score int, rubric ScoringRubric) PerformanceLevel {
	if rubric.Perfect <= 0 {
		return NeedsImprovement
	}
	// score/perfect >= threshold, compared in integers.
	scaled := score * 100 //nolint:mnd // percent
	switch {
	case scaled >= 90*rubric.Perfect: //nolint:mnd // threshold
		return Excellent
	case scaled >= 75*rubric.Perfect: //nolint:mnd // threshold
		return Good
	case scaled >= 60*rubric.Perfect: //nolint:mnd // threshold
		return Passing
	default:
		return NeedsImprovement
	}
}
