package main

import (
	"context"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/models"
	"github.com/medcircle/medresident/internal/simulation"
	"log/slog"
)

// newSimulation creates the live session stored under id for learnerID. It is the factory of the live session
// store.
func (app *application) newSimulation(id string, learnerID string) *simulation.Session {
	return simulation.NewSession(
		simulation.WithID(id),
		simulation.WithLogger(app.logger),
		simulation.WithObserver(app.metrics),
		simulation.WithObserver(app.publisher),
		simulation.WithObserver(&simulationObserver{app: app, learnerID: learnerID}),
	)
}

// simulationObserver streams the events of one live session to the open browser tabs and records completed runs.
type simulationObserver struct {
	app       *application
	learnerID string
}

func (o *simulationObserver) OnEvent(ctx context.Context, e simulation.Event) {
	switch e.Type {
	case simulation.EventCompleted:
		o.app.streams.Publish(e.Snapshot.ID, e)
		o.recordAttempt(ctx, e.Snapshot)
	case simulation.EventReset:
		o.app.streams.Close(e.Snapshot.ID)
	case simulation.EventStarted, simulation.EventDecided, simulation.EventTicked, simulation.EventTimedOut:
		o.app.streams.Publish(e.Snapshot.ID, e)
	}
}

func (o *simulationObserver) recordAttempt(ctx context.Context, snap simulation.Snapshot) {
	// The request may be gone by the time the decision that completed the run is answered.
	ctx = context.WithoutCancel(ctx)
	attempt := models.NewAttempt(o.learnerID, snap)
	if err := o.app.attempts.Create(ctx, attempt); err != nil {
		o.app.logger.LogAttrs(ctx, slog.LevelError, "record attempt failed",
			errors.SlogError(errors.Wrap(err, "create attempt", slog.String("simulation_id", snap.ID))))
		return
	}
	o.app.logger.LogAttrs(ctx, slog.LevelInfo, "attempt recorded",
		slog.String("attempt_id", attempt.ID),
		slog.String("scenario_id", attempt.ScenarioID),
		slog.Int("score", attempt.Score),
		slog.String("performance", attempt.Performance))
}
