package main

import (
	"github.com/medcircle/medresident/internal/contexthelpers"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/simulation"
	"net/http"
)

type simulationTemplateData struct {
	BaseTemplateData

	Snapshot simulation.Snapshot
	Scenario *simulation.Scenario
	// Timed is true when the current decision point has a countdown.
	Timed     bool
	Remaining int
}

// currentSimulation returns the live session of the learner if there is one.
func (app *application) currentSimulation(r *http.Request) (*simulation.Session, bool) {
	ctx := r.Context()
	id := app.sessionManager.GetString(ctx, string(simulationIDSessionKey))
	return app.simulations.Get(id, contexthelpers.LearnerID(ctx))
}

func (app *application) newSimulationTemplateData(r *http.Request, session *simulation.Session) simulationTemplateData {
	data := simulationTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Snapshot:         simulation.Snapshot{State: simulation.StateNotStarted}, //nolint:exhaustruct // no run yet
		Scenario:         nil,
		Timed:            false,
		Remaining:        0,
	}
	if session == nil {
		return data
	}
	data.Snapshot = session.Snapshot()
	if data.Snapshot.Remaining != nil {
		data.Timed = true
		data.Remaining = *data.Snapshot.Remaining
	}
	if scenario, err := app.catalog.Get(data.Snapshot.ScenarioID); err == nil {
		data.Scenario = scenario
	}
	return data
}

// renderSimulation answers htmx requests with the simulation fragment and redirects everything else to the
// simulation page.
func (app *application) renderSimulation(w http.ResponseWriter, r *http.Request, session *simulation.Session) {
	if app.htmx.NewHandler(w, r).IsHxRequest() {
		app.render(w, r, http.StatusOK, "simulation", "simulation", app.newSimulationTemplateData(r, session))
		return
	}
	http.Redirect(w, r, "/simulation", http.StatusSeeOther)
}

func (app *application) simulation(w http.ResponseWriter, r *http.Request) {
	session, _ := app.currentSimulation(r)
	app.render(w, r, http.StatusOK, "simulation", "simulation", app.newSimulationTemplateData(r, session))
}

func (app *application) simulationJSON(w http.ResponseWriter, r *http.Request) {
	session, _ := app.currentSimulation(r)
	app.writeJSON(w, r, http.StatusOK, app.newSimulationTemplateData(r, session).Snapshot)
}

func (app *application) startSimulation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		app.clientError(w, r, http.StatusBadRequest, errors.Wrap(err, "parse form"))
		return
	}
	scenario, err := app.catalog.Get(r.PostForm.Get("scenario_id"))
	if err != nil {
		app.simulationError(w, r, err)
		return
	}

	id := app.sessionManager.GetString(ctx, string(simulationIDSessionKey))
	session := app.simulations.GetOrCreate(id, contexthelpers.LearnerID(ctx))
	app.sessionManager.Put(ctx, string(simulationIDSessionKey), session.ID())
	if err = session.Start(ctx, scenario); err != nil {
		app.simulationError(w, r, err)
		return
	}
	app.renderSimulation(w, r, session)
}

func (app *application) chooseOption(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, r, http.StatusBadRequest, errors.Wrap(err, "parse form"))
		return
	}
	session, ok := app.currentSimulation(r)
	if !ok {
		app.simulationError(w, r, errors.Wrap(simulation.ErrInvalidState, "choose without live simulation"))
		return
	}
	if err := session.Choose(r.Context(), r.PostForm.Get("option_id")); err != nil {
		app.simulationError(w, r, err)
		return
	}
	app.renderSimulation(w, r, session)
}

func (app *application) resetSimulation(w http.ResponseWriter, r *http.Request) {
	if session, ok := app.currentSimulation(r); ok {
		session.Reset(r.Context())
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
