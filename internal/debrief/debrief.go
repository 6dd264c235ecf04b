// Package debrief writes the end-of-run evaluation shown to the learner.
package debrief

import (
	"context"
	"fmt"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/simulation"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"log/slog"
	"strings"
	"time"
)

var ErrNotComplete = errors.NewSentinel("simulation not complete")

// Completer turns a prompt into text. The OpenAI client implements it.
type Completer interface {
	Complete(ctx context.Context, system string, prompt string) (string, error)
}

// Report is the evaluation of a completed run.
type Report struct {
	Text string
	// LearningPoints are the explanations of the options the learner picked, in order.
	LearningPoints []string
	// Generated is false when Text is the built-in fallback.
	Generated bool
}

const systemPrompt = "Sen acil tıp ve pediatri alanında deneyimli bir klinik eğitmensin. " +
	"Asistan hekimin simülasyondaki kararlarını Türk tıp eğitimi standartlarına göre değerlendir: " +
	"kararların uygunluğu, klinik akıl yürütme, alternatif yaklaşımlar ve temel öğrenme noktaları. " +
	"Kısa ve yapıcı ol."

type Service struct {
	completer Completer
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *slog.Logger
}

// NewService creates a debrief service. A nil completer always yields the fallback report. rps throttles the calls to
// the completer across all learners.
func NewService(completer Completer, rps float64, logger *slog.Logger) *Service {
	s := &Service{
		completer: completer,
		breaker:   nil,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		timeout:   20 * time.Second, //nolint:mnd // generous for a single completion
		logger:    logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "debrief",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second, //nolint:mnd // time before a half-open retry
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3 //nolint:mnd // tolerate transient failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.LogAttrs(context.Background(), slog.LevelWarn, "circuit breaker state changed",
				slog.String("circuit_breaker", name),
				slog.String("from_state", from.String()),
				slog.String("to_state", to.String()))
		},
		IsSuccessful: nil,
	})
	return s
}

// Debrief evaluates the completed run in snap. Failures of the completer are logged and answered with the fallback
// report, so the only error is [ErrNotComplete].
func (s *Service) Debrief(ctx context.Context, scenario *simulation.Scenario, snap simulation.Snapshot) (Report, error) {
	if !snap.Complete || scenario == nil {
		return Report{}, errors.Wrap(ErrNotComplete, "debrief", slog.String("state", snap.State.String()))
	}
	report := fallback(scenario, snap)
	if s.completer == nil {
		return report, nil
	}

	text, err := s.complete(ctx, buildPrompt(scenario, snap))
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "debrief falls back to built-in report", errors.SlogError(err))
		return report, nil
	}
	report.Text = text
	report.Generated = true
	return report, nil
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "wait for rate limiter")
	}
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.completer.Complete(ctx, systemPrompt, prompt)
	})
	if err != nil {
		return "", errors.Wrap(err, "complete debrief")
	}
	text, _ := result.(string)
	return text, nil
}

func buildPrompt(scenario *simulation.Scenario, snap simulation.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Senaryo: %s (%s)\n", scenario.Title, scenario.Specialty)
	fmt.Fprintf(&b, "Başvuru: %s\n", scenario.InitialPresentation)
	fmt.Fprintf(&b, "Öğrenme hedefleri: %s\n\n", strings.Join(scenario.LearningObjectives, "; "))
	b.WriteString("Kararlar:\n")
	for i, h := range snap.History {
		if h.TimedOut {
			fmt.Fprintf(&b, "%d. %s\n   Karar verilmedi, süre doldu (%d puan)\n", i+1, h.Question, h.Points)
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n   Seçim: %s (%d puan)\n   Sonuç: %s\n",
			i+1, h.Question, h.Choice, h.Points, strings.Join(h.Consequences, ", "))
	}
	fmt.Fprintf(&b, "\nToplam puan: %d / %d, performans: %s\n", snap.Score, snap.Perfect, snap.Performance)
	if len(snap.Patient.Complications) > 0 {
		fmt.Fprintf(&b, "Komplikasyonlar: %s\n", strings.Join(snap.Patient.Complications, ", "))
	}
	return b.String()
}

// fallback builds a deterministic report from the authored explanations.
func fallback(scenario *simulation.Scenario, snap simulation.Snapshot) Report {
	points := make([]string, 0, len(snap.History))
	for _, h := range snap.History {
		if h.TimedOut {
			points = append(points, simulation.TimeoutComplication)
			continue
		}
		if h.Explanation != "" {
			points = append(points, h.Explanation)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s senaryosunu %d / %d puanla tamamladınız. Performans: %s.",
		scenario.Title, snap.Score, snap.Perfect, snap.Performance)
	if snap.Patient.Stable {
		b.WriteString(" Hasta stabil kaldı.")
	} else {
		b.WriteString(" Hasta stabilitesini kaybetti.")
	}
	if snap.TimedOut {
		b.WriteString(" Kritik kararlar zaman sınırı içinde verilmelidir.")
	}
	return Report{Text: b.String(), LearningPoints: points, Generated: false}
}
