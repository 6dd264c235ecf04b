package play_test

import (
	"bytes"
	"context"
	"github.com/medcircle/medresident/cmd/cli/play"
	"github.com/medcircle/medresident/internal/debrief"
	"github.com/medcircle/medresident/internal/simulation"
	"github.com/medcircle/medresident/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"strings"
	"testing"
)

func scenario(t *testing.T, id string) *simulation.Scenario {
	t.Helper()
	s, err := simulation.MustLoadCatalog().Get(id)
	require.NoError(t, err)
	return s
}

func TestRun(t *testing.T) {
	logger := testhelpers.NewLogger(io.Discard)
	tests := []struct {
		name     string
		scenario string
		input    string
		contains []string
	}{
		{
			name:     "optimal path by number and id",
			scenario: "trauma-polytrauma",
			input:    "1\nneedle-decompression\n",
			contains: []string{
				"1) ",
				"Süre: 120 sn",
				"Puan: 55 / 100",
				"Performans: Geliştirilmeli",
				"Hasta stabil\n",
				"ATLS protokolüne göre sistematik yaklaşım hayat kurtarır",
			},
		},
		{
			name:     "invalid answers are asked again",
			scenario: "pediatric-meningitis",
			input:    "9\nlumbar-puncture\n2\n",
			contains: []string{
				`Geçersiz seçim: "9"`,
				`Geçersiz seçim: "lumbar-puncture"`,
				"Puan: -15 / 100",
				"Hasta stabil değil",
				"  - Septik şok gelişti",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := play.Run(context.Background(), scenario(t, tt.scenario), play.Options{
				In:      strings.NewReader(tt.input),
				Out:     &out,
				Clock:   testhelpers.NewManualClock(),
				Debrief: debrief.NewService(nil, 1, logger),
				Logger:  logger,
			})
			require.NoError(t, err)
			for _, want := range tt.contains {
				require.Contains(t, out.String(), want)
			}
		})
	}
}

func TestRun_InputClosed(t *testing.T) {
	var out bytes.Buffer
	err := play.Run(context.Background(), scenario(t, "trauma-polytrauma"), play.Options{
		In:      strings.NewReader("1\n"),
		Out:     &out,
		Clock:   testhelpers.NewManualClock(),
		Debrief: nil,
		Logger:  testhelpers.NewLogger(io.Discard),
	})
	require.ErrorIs(t, err, play.ErrInputClosed)
	require.NotContains(t, out.String(), "Simülasyon tamamlandı")
}

func TestRun_Timeout(t *testing.T) {
	clock := testhelpers.NewManualClock()
	in, writer := io.Pipe()
	defer func() { _ = writer.Close() }()
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- play.Run(context.Background(), scenario(t, "trauma-polytrauma"), play.Options{
			In:      in,
			Out:     &out,
			Clock:   clock,
			Debrief: nil,
			Logger:  testhelpers.NewLogger(io.Discard),
		})
	}()

	ticker := clock.NextTicker(t)
	require.True(t, ticker.Ticks(120))
	require.NoError(t, <-done)
	require.Contains(t, out.String(), simulation.TimeoutComplication)
	require.Contains(t, out.String(), "Puan: -10 / 100")
	require.Contains(t, out.String(), "⏱ 90 sn")
	require.Contains(t, out.String(), "⏱ 1 sn")
}
