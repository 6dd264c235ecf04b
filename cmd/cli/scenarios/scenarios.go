// Package scenarios lists, shows and validates clinical scenarios.
package scenarios

import (
	"fmt"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/simulation"
	"github.com/spf13/cobra"
	"io"
	"log/slog"
	"os"
	"strings"
)

var Group = &cobra.Group{
	ID:    "scenarios",
	Title: "Scenario catalog",
}

var List = &cobra.Command{
	Use:     "list",
	GroupID: "scenarios",
	Short:   "List scenarios",
	Long:    "Lists the scenarios embedded in the catalog",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := simulation.LoadCatalog()
		if err != nil {
			return errors.Wrap(err, "load catalog")
		}
		out := cmd.OutOrStdout()
		for _, s := range catalog.List() {
			_, _ = fmt.Fprintf(out, "%-24s %-10s %-10s %3d dk  %s\n",
				s.ID, s.Specialty, s.Difficulty, s.EstimatedMinutes, s.Title)
		}
		return nil
	},
}

var Show = &cobra.Command{
	Use:     "show [scenario id]",
	GroupID: "scenarios",
	Short:   "Show scenario",
	Long:    "Prints the decision tree of a scenario including the correct options and the scoring rubric",
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
		PrintTree(cmd.OutOrStdout(), scenario)
		return nil
	},
}

var Validate = &cobra.Command{
	Use:     "validate [file]...",
	GroupID: "scenarios",
	Short:   "Validate scenario files",
	Long:    "Parses scenario YAML files and checks their decision trees",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var errs []error
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				errs = append(errs, errors.Wrap(err, "read scenario", slog.String("path", path)))
				continue
			}
			scenario, err := simulation.ParseScenario(data)
			if err != nil {
				errs = append(errs, errors.Wrap(err, "parse scenario", slog.String("path", path)))
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				continue
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d decision points\n",
				path, scenario.ID, len(scenario.DecisionPoints))
		}
		return errors.Join(errs...)
	},
}

// PrintTree writes the decision tree of scenario depth first from its root.
func PrintTree(w io.Writer, scenario *simulation.Scenario) {
	_, _ = fmt.Fprintf(w, "%s (%s)\n", scenario.Title, scenario.ID)
	_, _ = fmt.Fprintf(w, "%s · %s · %d dk\n", scenario.Specialty, scenario.Difficulty, scenario.EstimatedMinutes)
	_, _ = fmt.Fprintf(w, "Puanlama: mükemmel %d, iyi %d, geçer %d\n\n",
		scenario.Rubric.Perfect, scenario.Rubric.Good, scenario.Rubric.Passing)
	seen := map[string]bool{}
	var walk func(dp *simulation.DecisionPoint, depth int)
	walk = func(dp *simulation.DecisionPoint, depth int) {
		indent := strings.Repeat("  ", depth)
		if seen[dp.ID] {
			_, _ = fmt.Fprintf(w, "%s↪ %s\n", indent, dp.ID)
			return
		}
		seen[dp.ID] = true
		timer := "süresiz"
		if dp.Timed() {
			timer = fmt.Sprintf("%d sn", dp.TimeLimit)
		}
		_, _ = fmt.Fprintf(w, "%s[%s] %s (%s, %s)\n", indent, dp.ID, dp.Question, dp.Criticality, timer)
		for _, o := range dp.Options {
			mark := "✗"
			if o.Correct {
				mark = "✓"
			}
			_, _ = fmt.Fprintf(w, "%s  %s %s: %s (%+d)\n", indent, mark, o.ID, o.Text, o.Points)
			if len(o.Branches) == 0 {
				continue
			}
			branch := o.Branches[0]
			for _, c := range branch.Consequences {
				_, _ = fmt.Fprintf(w, "%s      → %s\n", indent, c)
			}
			if len(branch.Next) > 0 {
				if next, ok := scenario.DecisionPoint(branch.Next[0]); ok {
					walk(next, depth+3) //nolint:mnd // below the option
				}
			}
		}
	}
	if root := scenario.Root(); root != nil {
		walk(root, 0)
	}
}
