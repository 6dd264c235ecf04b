package main

import (
	"github.com/medcircle/medresident/internal/debrief"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/simulation"
	"net/http"
)

type debriefTemplateData struct {
	BaseTemplateData

	Snapshot simulation.Snapshot
	Report   debrief.Report
}

func (app *application) debrief(w http.ResponseWriter, r *http.Request) {
	session, ok := app.currentSimulation(r)
	if !ok {
		app.simulationError(w, r, errors.Wrap(debrief.ErrNotComplete, "debrief without live simulation"))
		return
	}
	snap := session.Snapshot()
	if !snap.Complete {
		app.simulationError(w, r, errors.Wrap(debrief.ErrNotComplete, "debrief"))
		return
	}
	scenario, err := app.catalog.Get(snap.ScenarioID)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "get scenario of completed run"))
		return
	}
	report, err := app.debriefs.Debrief(r.Context(), scenario, snap)
	if err != nil {
		app.simulationError(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, "debrief", "", debriefTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Snapshot:         snap,
		Report:           report,
	})
}
