// Package play runs a simulation interactively in the terminal.
package play

import (
	"bufio"
	"context"
	"fmt"
	"github.com/medcircle/medresident/internal/ai"
	"github.com/medcircle/medresident/internal/debrief"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/logging"
	"github.com/medcircle/medresident/internal/simulation"
	"github.com/spf13/cobra"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

var ErrInputClosed = errors.NewSentinel("input closed before the simulation completed")

var Group = &cobra.Group{
	ID:    "play",
	Title: "Simulation",
}

func init() {
	Play.Flags().Bool("debrief", false, "print an evaluation after the run, generated when OPENAI_API_KEY is set")
	Play.Flags().String("model", "gpt-3.5-turbo", "OpenAI model of the generated evaluation")
}

var Play = &cobra.Command{
	Use:     "play [scenario id]",
	GroupID: "play",
	Short:   "Play scenario",
	Long:    "Runs a scenario in the terminal with live countdowns. Answer with the option number or id.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := simulation.LoadCatalog()
		if err != nil {
			return errors.Wrap(err, "load catalog")
		}
		scenario, err := catalog.Get(args[0])
		if err != nil {
			return err //nolint:wrapcheck // already annotated with the id
		}
		logger := logging.NewLogger(cmd.ErrOrStderr(), false)
		opts := Options{
			In:      cmd.InOrStdin(),
			Out:     cmd.OutOrStdout(),
			Clock:   simulation.SystemClock,
			Debrief: nil,
			Logger:  logger,
		}
		withDebrief, err := cmd.Flags().GetBool("debrief")
		if err != nil {
			return errors.Wrap(err, "debrief flag")
		}
		if withDebrief {
			var completer debrief.Completer
			if key := os.Getenv("OPENAI_API_KEY"); key != "" {
				model, _ := cmd.Flags().GetString("model")
				completer = ai.NewClient(key, model)
			}
			opts.Debrief = debrief.NewService(completer, 1, logger)
		}
		return Run(cmd.Context(), scenario, opts)
	},
}

// Options configure [Run].
type Options struct {
	In    io.Reader
	Out   io.Writer
	Clock simulation.Clock
	// Debrief prints an evaluation after the run when set.
	Debrief *debrief.Service
	Logger  *slog.Logger
}

// console serialises the writes of the countdown goroutine and the prompt loop.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, a...)
}

// Run plays scenario until it completes or the input closes.
func Run(ctx context.Context, scenario *simulation.Scenario, opts Options) error {
	out := &console{mu: sync.Mutex{}, out: opts.Out}
	completed := make(chan simulation.Snapshot, 1)
	session := simulation.NewSession(
		simulation.WithClock(opts.Clock),
		simulation.WithLogger(opts.Logger),
		simulation.WithObserver(simulation.ObserverFunc(func(_ context.Context, e simulation.Event) {
			switch e.Type {
			case simulation.EventTicked:
				if r := e.Snapshot.Remaining; r != nil && (*r <= 10 || *r%30 == 0) {
					out.printf("  ⏱ %d sn\n", *r)
				}
			case simulation.EventTimedOut:
				out.printf("\n%s\n", simulation.TimeoutComplication)
			case simulation.EventCompleted:
				completed <- e.Snapshot
			case simulation.EventStarted, simulation.EventDecided, simulation.EventReset:
			}
		})),
	)
	defer session.Reset(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(opts.In)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	out.printf("%s\n%s\n\n", scenario.Title, scenario.InitialPresentation)
	if err := session.Start(ctx, scenario); err != nil {
		return errors.Wrap(err, "start simulation")
	}

	for {
		current, ok := session.CurrentDecisionPoint()
		if ok {
			printDecisionPoint(out, current, session)
		}
		var snap simulation.Snapshot
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "play")
		case snap = <-completed:
			printResult(ctx, out, scenario, snap, opts.Debrief)
			return nil
		case line, open := <-lines:
			if !open {
				if session.IsComplete() {
					printResult(ctx, out, scenario, <-completed, opts.Debrief)
					return nil
				}
				return ErrInputClosed
			}
			if !ok {
				continue
			}
			if err := session.Choose(ctx, optionID(current, line)); err != nil {
				switch {
				case errors.Is(err, simulation.ErrInvalidOption):
					out.printf("Geçersiz seçim: %q\n", line)
				case errors.Is(err, simulation.ErrInvalidState):
					// The countdown expired while the answer was typed.
				default:
					return errors.Wrap(err, "choose")
				}
				continue
			}
			if h := session.History(); len(h) > 0 {
				last := h[len(h)-1]
				out.printf("→ %s (%+d)\n", last.Condition, last.Points)
				for _, c := range last.Consequences {
					out.printf("  • %s\n", c)
				}
				out.printf("\n")
			}
		}
	}
}

// optionID accepts the 1-based number of an option or its id.
func optionID(dp *simulation.DecisionPoint, answer string) string {
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(dp.Options) {
		return dp.Options[n-1].ID
	}
	return answer
}

func printDecisionPoint(out *console, dp *simulation.DecisionPoint, session *simulation.Session) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", dp.Question)
	if dp.Context != "" {
		fmt.Fprintf(&b, "%s\n", dp.Context)
	}
	if pd := dp.PatientData; pd != nil {
		for _, r := range append(append([]simulation.Reading{}, pd.Vitals...), pd.Labs...) {
			fmt.Fprintf(&b, "  %s: %s\n", r.Name, r.Value)
		}
		for _, s := range append(append([]string{}, pd.Imaging...), pd.History...) {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}
	for i, o := range dp.Options {
		fmt.Fprintf(&b, "%d) %s\n", i+1, o.Text)
	}
	if remaining, ok := session.RemainingTime(); ok {
		fmt.Fprintf(&b, "Süre: %d sn\n", remaining)
	}
	b.WriteString("> ")
	out.printf("%s", b.String())
}

func printResult(
	ctx context.Context,
	out *console,
	scenario *simulation.Scenario,
	snap simulation.Snapshot,
	service *debrief.Service,
) {
	out.printf("\nSimülasyon tamamlandı\nPuan: %d / %d\nPerformans: %s\n", snap.Score, snap.Perfect, snap.Performance)
	if snap.Patient.Stable {
		out.printf("Hasta stabil\n")
	} else {
		out.printf("Hasta stabil değil\n")
	}
	for _, c := range snap.Patient.Complications {
		out.printf("  - %s\n", c)
	}
	for _, i := range snap.Patient.Improvements {
		out.printf("  + %s\n", i)
	}
	if service == nil {
		return
	}
	report, err := service.Debrief(ctx, scenario, snap)
	if err != nil {
		out.printf("Değerlendirme alınamadı: %v\n", err)
		return
	}
	out.printf("\nDeğerlendirme\n%s\n", report.Text)
	for _, p := range report.LearningPoints {
		out.printf("  • %s\n", p)
	}
}
