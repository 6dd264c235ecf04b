package main

import (
	"github.com/medcircle/medresident/internal/contexthelpers"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/models"
	"net/http"
)

const progressAttemptLimit = 50

type progressTemplateData struct {
	BaseTemplateData

	Attempts []models.Attempt
	Summary  []models.ScenarioSummary
}

func (app *application) progress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	learnerID := contexthelpers.LearnerID(ctx)
	attempts, err := app.attempts.ListByLearner(ctx, learnerID, progressAttemptLimit)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "list attempts"))
		return
	}
	summary, err := app.attempts.Summary(ctx, learnerID)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "summarise attempts"))
		return
	}
	app.render(w, r, http.StatusOK, "progress", "", progressTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Attempts:         attempts,
		Summary:          summary,
	})
}
