package main

import (
	"github.com/medcircle/medresident/internal/simulation"
	"net/http"
)

type homeTemplateData struct {
	BaseTemplateData

	Scenarios []*simulation.Scenario
}

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	data := homeTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Scenarios:        app.catalog.List(),
	}

	app.render(w, r, http.StatusOK, "home", "", data)
}
