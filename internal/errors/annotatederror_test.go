package errors

import (
	"github.com/stretchr/testify/require"
	"log/slog"
	"slices"
	"testing"
)

var errTestSentinel = NewSentinel("scenario not found")

func TestAnnotatedError(t *testing.T) {
	err := New("test error", slog.String("scenario_id", "trauma-polytrauma"))
	require.Equal(t, "test error", err.Error())
	require.NotErrorIs(t, err, errTestSentinel)

	var annotated *AnnotatedError
	require.True(t, As(err, &annotated))

	group := annotated.LogValue().Group()
	require.Contains(t, group, slog.String("scenario_id", "trauma-polytrauma"))

	sourceIdx := slices.IndexFunc(group, func(attr slog.Attr) bool {
		return attr.Key == "source"
	})
	require.GreaterOrEqual(t, sourceIdx, 0, "source attribute missing")
	require.Contains(t, group[sourceIdx].Value.String(), "annotatederror_test.go")
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(errTestSentinel, "get scenario", slog.String("scenario_id", "missing"))
	require.ErrorIs(t, wrapped, errTestSentinel)
	require.Equal(t, "get scenario: scenario not found", wrapped.Error())

	twice := Wrap(wrapped, "start session")
	require.ErrorIs(t, twice, errTestSentinel)
	require.Equal(t, "start session: get scenario: scenario not found", twice.Error())

	require.NoError(t, Wrap(nil, "nothing to wrap"))
}

func TestSlogError(t *testing.T) {
	plain := SlogError(errTestSentinel)
	require.Equal(t, "error", plain.Key)
	require.Equal(t, "scenario not found", plain.Value.String())

	annotated := SlogError(Wrap(errTestSentinel, "choose option", slog.String("option_id", "x")))
	require.Equal(t, "error", annotated.Key)
	group := annotated.Value.Resolve().Group()
	require.Contains(t, group, slog.String("option_id", "x"))
}
