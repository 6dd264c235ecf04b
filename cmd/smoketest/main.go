package main

import (
	"context"
	"github.com/medcircle/medresident/internal/e2etest"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/logging"
	"log/slog"
	"os"
	"strings"
	"time"
)

// PlayTrauma walks the trauma scenario along its correct options and checks the final state through the JSON API.
func PlayTrauma(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	doc, err := client.GetDoc(ctx, "/")
	if err != nil {
		return errors.Wrap(err, "get home")
	}
	steps := []string{
		"#scenario-trauma-polytrauma form",
		"form:has(input[value='abc-primary'])",
		"form:has(input[value='needle-decompression'])",
	}
	for _, selector := range steps {
		if doc, err = client.SubmitForm(ctx, doc, selector); err != nil {
			return errors.Wrap(err, "submit form", slog.String("selector", selector))
		}
	}
	if state := doc.Find("#simulation").AttrOr("data-state", ""); state != "complete" {
		return errors.New("simulation not complete", slog.String("state", state))
	}

	var snapshot struct {
		State    string `json:"state"`
		Score    int    `json:"score"`
		Complete bool   `json:"complete"`
	}
	if err = client.GetJSON(ctx, "/api/simulation", &snapshot); err != nil {
		return errors.Wrap(err, "get simulation")
	}
	if !snapshot.Complete || snapshot.Score <= 0 {
		return errors.New("unexpected snapshot", slog.String("state", snapshot.State),
			slog.Int("score", snapshot.Score))
	}

	if doc, err = client.GetDoc(ctx, "/progress"); err != nil {
		return errors.Wrap(err, "get progress")
	}
	if strings.TrimSpace(doc.Find("tr[data-scenario='trauma-polytrauma'] .best").Text()) == "" {
		return errors.New("attempt missing from progress")
	}
	return nil
}

func main() {
	logger := logging.NewLogger(os.Stdout, false)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
		client   *e2etest.Client
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = PlayTrauma(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error playing trauma scenario", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
