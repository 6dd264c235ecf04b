package simulation

import (
	"embed"
	"github.com/medcircle/medresident/internal/errors"
	"gopkg.in/yaml.v3"
	"io/fs"
	"log/slog"
	"path"
	"sort"
)

var (
	ErrScenarioNotFound = errors.NewSentinel("scenario not found")
	ErrInvalidScenario  = errors.NewSentinel("invalid scenario")
)

//go:embed scenarios/*.yaml
var scenarioFiles embed.FS

// Catalog is the read-only registry of authored scenarios.
type Catalog struct {
	scenarios []*Scenario
	byID      map[string]*Scenario
}

// LoadCatalog loads the scenarios bundled with the binary.
func LoadCatalog() (*Catalog, error) {
	sub, err := fs.Sub(scenarioFiles, "scenarios")
	if err != nil {
		return nil, errors.Wrap(err, "sub scenarios")
	}
	return NewCatalog(sub)
}

// MustLoadCatalog is like [LoadCatalog] but panics when the bundled scenarios are broken.
func MustLoadCatalog() *Catalog {
	c, err := LoadCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog parses every *.yaml file at the root of fsys. Files are read in lexical order which is also the
// listing order of the catalog.
func NewCatalog(fsys fs.FS) (*Catalog, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "glob scenarios")
	}
	sort.Strings(names)

	c := &Catalog{
		scenarios: make([]*Scenario, 0, len(names)),
		byID:      make(map[string]*Scenario, len(names)),
	}
	for _, name := range names {
		var data []byte
		if data, err = fs.ReadFile(fsys, name); err != nil {
			return nil, errors.Wrap(err, "read scenario", slog.String("file", name))
		}
		var s *Scenario
		if s, err = ParseScenario(data); err != nil {
			return nil, errors.Wrap(err, "parse scenario", slog.String("file", path.Base(name)))
		}
		if _, ok := c.byID[s.ID]; ok {
			return nil, errors.Wrap(ErrInvalidScenario, "duplicate scenario id", slog.String("id", s.ID))
		}
		c.byID[s.ID] = s
		c.scenarios = append(c.scenarios, s)
	}
	return c, nil
}

// List returns the scenarios in stable authoring order.
func (c *Catalog) List() []*Scenario {
	out := make([]*Scenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}

// Get returns the scenario with the given id or [ErrScenarioNotFound].
func (c *Catalog) Get(id string) (*Scenario, error) {
	s, ok := c.byID[id]
	if !ok {
		return nil, errors.Wrap(ErrScenarioNotFound, "get scenario", slog.String("id", id))
	}
	return s, nil
}

// ParseScenario decodes a YAML scenario and validates its decision tree.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(ErrInvalidScenario, "decode yaml", slog.String("cause", err.Error()))
	}
	if err := s.index(); err != nil {
		return nil, err
	}
	return &s, nil
}

// index builds the id lookup table and rejects trees the session could not walk.
func (s *Scenario) index() error {
	invalid := func(msg string, attrs ...slog.Attr) error {
		return errors.Wrap(ErrInvalidScenario, msg, append([]slog.Attr{slog.String("scenario", s.ID)}, attrs...)...)
	}

	if s.ID == "" {
		return invalid("missing id")
	}
	if !s.Difficulty.valid() {
		return invalid("unknown difficulty", slog.String("difficulty", string(s.Difficulty)))
	}
	if s.Rubric.Perfect <= 0 {
		return invalid("perfect score must be positive", slog.Int("perfect", s.Rubric.Perfect))
	}
	if len(s.DecisionPoints) == 0 {
		return errors.Wrap(ErrEmptyDecisionTree, "index scenario", slog.String("scenario", s.ID))
	}

	points := make(map[string]*DecisionPoint, len(s.DecisionPoints))
	for _, dp := range s.DecisionPoints {
		if dp == nil || dp.ID == "" {
			return invalid("decision point without id")
		}
		if _, ok := points[dp.ID]; ok {
			return invalid("duplicate decision point", slog.String("decision", dp.ID))
		}
		points[dp.ID] = dp
	}
	if s.RootID == "" {
		s.RootID = s.DecisionPoints[0].ID
	}
	if _, ok := points[s.RootID]; !ok {
		return invalid("unknown root", slog.String("root", s.RootID))
	}

	for _, dp := range s.DecisionPoints {
		if err := validateDecisionPoint(dp, points, invalid); err != nil {
			return err
		}
	}

	s.points = points
	if hasCycle(s.RootID, points) {
		s.points = nil
		return invalid("decision tree contains a cycle")
	}
	return nil
}

func validateDecisionPoint(
	dp *DecisionPoint,
	points map[string]*DecisionPoint,
	invalid func(string, ...slog.Attr) error,
) error {
	at := slog.String("decision", dp.ID)
	if dp.TimeLimit < 0 {
		return invalid("negative time limit", at)
	}
	if !dp.Criticality.valid() {
		return invalid("unknown criticality", at, slog.String("criticality", string(dp.Criticality)))
	}
	if len(dp.Options) == 0 {
		return invalid("decision point without options", at)
	}
	seen := make(map[string]struct{}, len(dp.Options))
	for _, o := range dp.Options {
		if o.ID == "" {
			return invalid("option without id", at)
		}
		if _, ok := seen[o.ID]; ok {
			return invalid("duplicate option", at, slog.String("option", o.ID))
		}
		seen[o.ID] = struct{}{}
		if len(o.Branches) == 0 {
			return invalid("option without branches", at, slog.String("option", o.ID))
		}
		for _, b := range o.Branches {
			if b.Probability < 0 || b.Probability > 1 {
				return invalid("probability out of range", at, slog.String("branch", b.ID),
					slog.Float64("probability", b.Probability))
			}
			for _, next := range b.Next {
				if _, ok := points[next]; !ok {
					return invalid("unresolved next decision point", at, slog.String("branch", b.ID),
						slog.String("next", next))
				}
			}
		}
	}
	return nil
}

// hasCycle walks every branch reachable from root looking for a back edge.
func hasCycle(root string, points map[string]*DecisionPoint) bool {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(points))
	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return true
		case done:
			return false
		}
		state[id] = visiting
		for _, o := range points[id].Options {
			for _, b := range o.Branches {
				for _, next := range b.Next {
					if visit(next) {
						return true
					}
				}
			}
		}
		state[id] = done
		return false
	}
	return visit(root)
}
