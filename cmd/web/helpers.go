package main

import (
	"encoding/json"
	"github.com/medcircle/medresident/internal/debrief"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/simulation"
	"log/slog"
	"net/http"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri), slog.Any("formdata", r.PostForm),
		errors.SlogError(err))
	http.Error(w, http.StatusText(status), status)
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request, err error) {
	app.clientError(w, r, http.StatusNotFound, err)
}

// simulationError maps contract violations of the simulation to client errors and everything else to a server error.
func (app *application) simulationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, simulation.ErrScenarioNotFound):
		app.notFound(w, r, err)
	case errors.Is(err, simulation.ErrInvalidOption):
		app.clientError(w, r, http.StatusUnprocessableEntity, err)
	case errors.Is(err, simulation.ErrInvalidState), errors.Is(err, debrief.ErrNotComplete):
		app.clientError(w, r, http.StatusConflict, err)
	default:
		app.serverError(w, r, err)
	}
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal json"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
