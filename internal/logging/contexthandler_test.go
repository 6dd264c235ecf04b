package logging_test

import (
	"bytes"
	"context"
	"github.com/medcircle/medresident/internal/logging"
	"github.com/stretchr/testify/require"
	"log/slog"
	"testing"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, false)

	ctx := logging.WithAttrs(context.Background(), slog.String("simulation_id", "abc"))
	child := logging.WithAttrs(ctx, slog.String("scenario_id", "trauma-polytrauma"))

	logger.LogAttrs(child, slog.LevelInfo, "decision made")
	require.Contains(t, buf.String(), "simulation_id=abc")
	require.Contains(t, buf.String(), "scenario_id=trauma-polytrauma")

	// The parent context must not see attributes added to the child.
	buf.Reset()
	logger.LogAttrs(ctx, slog.LevelInfo, "parent")
	require.Contains(t, buf.String(), "simulation_id=abc")
	require.NotContains(t, buf.String(), "scenario_id")
}
