package main

import (
	"encoding/json"
	"fmt"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/simulation"
	"log/slog"
	"net/http"
	"time"
)

// streamMessage is the data of a server-sent event.
type streamMessage struct {
	Remaining *int             `json:"remaining,omitempty"`
	Score     int              `json:"score"`
	State     simulation.State `json:"state"`
	Complete  bool             `json:"complete"`
	TimedOut  bool             `json:"timedOut"`
}

// streamSimulation streams the countdown and the state changes of the learner's live session as server-sent events
// named after the event type. The stream ends when the run completes or is reset.
func (app *application) streamSimulation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := app.currentSimulation(r)
	if !ok {
		// Browsers stop reconnecting on 204.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		app.serverError(w, r, errors.Wrap(err, "disable write deadline"))
		return
	}
	payloads, unsubscribe := app.streams.Subscribe(session.ID())
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// The current state goes first so that a late subscriber does not wait for the next tick.
	snap := session.Snapshot()
	if err := app.writeStreamEvent(w, rc, "snapshot", snap); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelDebug, "stream closed", errors.SlogError(err))
		return
	}
	if snap.Complete {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-payloads:
			if !open {
				return
			}
			if err := app.writeStreamEvent(w, rc, string(e.Type), e.Snapshot); err != nil {
				app.logger.LogAttrs(ctx, slog.LevelDebug, "stream closed", errors.SlogError(err))
				return
			}
			if e.Type == simulation.EventCompleted {
				return
			}
		}
	}
}

func (app *application) writeStreamEvent(
	w http.ResponseWriter, rc *http.ResponseController, name string, snap simulation.Snapshot) error {
	data, err := json.Marshal(streamMessage{
		Remaining: snap.Remaining,
		Score:     snap.Score,
		State:     snap.State,
		Complete:  snap.Complete,
		TimedOut:  snap.TimedOut,
	})
	if err != nil {
		return errors.Wrap(err, "marshal stream message")
	}
	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return errors.Wrap(err, "write event")
	}
	if err = rc.Flush(); err != nil {
		return errors.Wrap(err, "flush event")
	}
	return nil
}
