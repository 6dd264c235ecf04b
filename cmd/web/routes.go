package main

import (
	"github.com/justinas/alice"
	"github.com/medcircle/medresident/ui"
	"io/fs"
	"net/http"
	"time"
)

func (app *application) routes(defaultTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(ui.Files, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", cacheForeverHeaders(http.StripPrefix("/static", http.FileServerFS(static))))

	session := alice.New(app.sessionManager.LoadAndSave, noSurf, app.learner, commonContext)
	// Pages answer before the server closes the connection. Streams stay open and are excluded.
	dynamic := session.Append(func(h http.Handler) http.Handler { return timeoutHandler(h, defaultTimeout) })
	stream := alice.New(app.serverSentEventMiddleware, app.learner)

	mux.Handle("GET /{$}", dynamic.ThenFunc(app.home))
	mux.Handle("GET /simulation", dynamic.ThenFunc(app.simulation))
	mux.Handle("POST /simulation/start", dynamic.ThenFunc(app.startSimulation))
	mux.Handle("POST /simulation/choose", dynamic.ThenFunc(app.chooseOption))
	mux.Handle("POST /simulation/reset", dynamic.ThenFunc(app.resetSimulation))
	mux.Handle("GET /simulation/debrief", dynamic.ThenFunc(app.debrief))
	mux.Handle("GET /simulation/stream", stream.ThenFunc(app.streamSimulation))
	mux.Handle("GET /progress", dynamic.ThenFunc(app.progress))
	mux.Handle("GET /api/simulation", dynamic.ThenFunc(app.simulationJSON))

	mux.HandleFunc("GET /api/healthy", app.healthy)
	mux.Handle("GET /metrics", app.metrics.Handler())

	return alice.New(app.recoverPanic, app.logRequest, secureHeaders).Then(mux)
}
