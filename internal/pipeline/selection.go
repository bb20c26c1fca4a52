package pipeline

import (
	"fmt"

	"go.uber.org/zap"
)

// Step describes the result of executing a selection step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Selector is one narrowing step over a list of applications.
type Selector interface {
	Name() string
	Apply(apps []Application) ([]Application, Step)
}

type predicate struct {
	name string
	keep func(app *Application) bool
}

func (p predicate) Name() string { return p.name }

func (p predicate) Apply(apps []Application) ([]Application, Step) {
	kept := make([]Application, 0, len(apps))
	for i := range apps {
		if p.keep(&apps[i]) {
			kept = append(kept, apps[i])
		}
	}
	return kept, Step{Initial: len(apps), Dropped: len(apps) - len(kept), Left: len(kept)}
}

// WithStatus keeps applications in the given status.
func WithStatus(status ApplicationStatus) Selector {
	return predicate{
		name: "status_" + string(status),
		keep: func(app *Application) bool { return app.Status == status },
	}
}

// Scored keeps applications that received a match score.
func Scored() Selector {
	return predicate{
		name: "scored",
		keep: func(app *Application) bool { return app.MatchScore != nil },
	}
}

// MinScore keeps applications scoring at least threshold.
func MinScore(threshold float64) Selector {
	return predicate{
		name: fmt.Sprintf("min_score_%g", threshold),
		keep: func(app *Application) bool { return app.MatchScore != nil && *app.MatchScore >= threshold },
	}
}

// AutoInviteSteps are the selection steps of the auto invite policy.
func AutoInviteSteps(threshold float64) []Selector {
	return []Selector{WithStatus(StatusPending), Scored(), MinScore(threshold)}
}

// Select runs steps in order and logs how many applications each one dropped.
func Select(apps []Application, logger *zap.Logger, steps ...Selector) []Application {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, step := range steps {
		var info Step
		apps, info = step.Apply(apps)
		logger.Debug("selection step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
	}
	return apps
}
