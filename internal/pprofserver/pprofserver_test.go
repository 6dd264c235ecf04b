package pprofserver_test

import (
	"context"
	"github.com/medcircle/medresident/internal/pprofserver"
	"github.com/medcircle/medresident/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"testing"
)

func TestLaunch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := pprofserver.Launch(ctx, "127.0.0.1:0", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/debug/pprof/cmdline")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
