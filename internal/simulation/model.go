package simulation

// Criticality tags a decision point for display. It does not change scoring or timing.
type Criticality string

const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

func (c Criticality) valid() bool {
	switch c {
	case CriticalityLow, CriticalityMedium, CriticalityHigh, CriticalityCritical:
		return true
	default:
		return false
	}
}

// Difficulty is the training level a scenario is written for.
type Difficulty string

const (
	DifficultyIntern    Difficulty = "intern"
	DifficultyResident  Difficulty = "resident"
	DifficultyFellow    Difficulty = "fellow"
	DifficultyAttending Difficulty = "attending"
)

func (d Difficulty) valid() bool {
	switch d {
	case DifficultyIntern, DifficultyResident, DifficultyFellow, DifficultyAttending:
		return true
	default:
		return false
	}
}

// Scenario is an authored clinical case. Scenarios are created by the catalog and must not be modified afterwards.
type Scenario struct {
	ID                  string        `json:"id" yaml:"id"`
	Title               string        `json:"title" yaml:"title"`
	Specialty           string        `json:"specialty" yaml:"specialty"`
	Difficulty          Difficulty    `json:"difficulty" yaml:"difficulty"`
	EstimatedMinutes    int           `json:"estimatedMinutes" yaml:"estimated_minutes"`
	Description         string        `json:"description" yaml:"description"`
	LearningObjectives  []string      `json:"learningObjectives" yaml:"learning_objectives"`
	InitialPresentation string        `json:"initialPresentation" yaml:"initial_presentation"`
	RootID              string        `json:"root" yaml:"root"`
	Rubric              ScoringRubric `json:"scoringRubric" yaml:"scoring_rubric"`
	// DecisionPoints is the arena of every decision point in the tree, in authoring order.
	DecisionPoints []*DecisionPoint `json:"decisionPoints" yaml:"decision_points"`

	points map[string]*DecisionPoint
}

// ScoringRubric holds the reference scores of a scenario. Only Perfect takes part in the performance calculation.
type ScoringRubric struct {
	Perfect int `json:"perfect" yaml:"perfect"`
	Good    int `json:"good" yaml:"good"`
	Passing int `json:"passing" yaml:"passing"`
}

// DecisionPoint is a question posed to the learner.
type DecisionPoint struct {
	ID       string `json:"id" yaml:"id"`
	Question string `json:"question" yaml:"question"`
	Context  string `json:"context" yaml:"context"`
	// TimeLimit in seconds. Zero means the decision is not timed.
	TimeLimit   int          `json:"timeLimit" yaml:"time_limit"`
	Criticality Criticality  `json:"criticality" yaml:"criticality"`
	PatientData *PatientData `json:"patientData,omitempty" yaml:"patient_data"`
	Options     []Option     `json:"options" yaml:"options"`
}

// PatientData is the patient snapshot shown next to a decision point.
type PatientData struct {
	Vitals  []Reading `json:"vitals" yaml:"vitals"`
	Labs    []Reading `json:"labs" yaml:"labs"`
	Imaging []string  `json:"imaging" yaml:"imaging"`
	History []string  `json:"history" yaml:"history"`
}

// Reading is a single named measurement such as a vital sign or a lab value.
type Reading struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Option is an answer the learner can pick at a decision point.
type Option struct {
	ID          string   `json:"id" yaml:"id"`
	Text        string   `json:"text" yaml:"text"`
	Correct     bool     `json:"-" yaml:"correct"`
	Branches    []Branch `json:"-" yaml:"branches"`
	Explanation string   `json:"-" yaml:"explanation"`
	Points      int      `json:"-" yaml:"points"`
}

// Branch is a consequence pathway of an option.
type Branch struct {
	ID        string `json:"id" yaml:"id"`
	Condition string `json:"condition" yaml:"condition"`
	// Probability is authored for future weighted outcomes. The resolver always takes the first branch.
	Probability  float64  `json:"probability" yaml:"probability"`
	Consequences []string `json:"consequences" yaml:"consequences"`
	// Next lists the ids of follow-up decision points. Only the first one is visited.
	Next []string `json:"next" yaml:"next"`
}

// Root returns the decision point the scenario starts from or nil when the tree is empty.
func (s *Scenario) Root() *DecisionPoint {
	if len(s.DecisionPoints) == 0 {
		return nil
	}
	if s.RootID == "" {
		return s.DecisionPoints[0]
	}
	dp, _ := s.DecisionPoint(s.RootID)
	return dp
}

// DecisionPoint looks up a decision point of the scenario by id.
func (s *Scenario) DecisionPoint(id string) (*DecisionPoint, bool) {
	if s.points != nil {
		dp, ok := s.points[id]
		return dp, ok
	}
	for _, dp := range s.DecisionPoints {
		if dp.ID == id {
			return dp, true
		}
	}
	return nil, false
}

// Option looks up an option of the decision point by id.
func (dp *DecisionPoint) Option(id string) (*Option, bool) {
	for i := range dp.Options {
		if dp.Options[i].ID == id {
			return &dp.Options[i], true
		}
	}
	return nil, false
}

// Timed reports whether a countdown runs while the decision point is active.
func (dp *DecisionPoint) Timed() bool {
	return dp.TimeLimit > 0
}
