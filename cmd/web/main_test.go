package main

import (
	"bufio"
	"context"
	"github.com/PuerkitoBio/goquery"
	"github.com/medcircle/medresident/internal/e2etest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"testing"
)

func testLookupEnv(key string) (string, bool) {
	switch key {
	case "MEDRESIDENT_ADDR":
		return "localhost:0", true
	case "MEDRESIDENT_SQLITE_URL":
		return ":memory:", true
	default:
		return "", false
	}
}

func startTestServer(t *testing.T) *e2etest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	server, err := e2etest.StartServer(ctx, io.Discard, testLookupEnv, run)
	require.NoError(t, err)
	return server
}

type apiSnapshot struct {
	State       string `json:"state"`
	ScenarioID  string `json:"scenarioId"`
	Score       int    `json:"score"`
	Complete    bool   `json:"complete"`
	Performance string `json:"performance"`
	TimedOut    bool   `json:"timedOut"`
	Current     *struct {
		ID      string `json:"id"`
		Options []struct {
			ID      string `json:"id"`
			Text    string `json:"text"`
			Correct *bool  `json:"correct"`
		} `json:"options"`
	} `json:"current"`
}

// csrfValues returns the CSRF token of the first form of the home page together with values.
func csrfValues(t *testing.T, client *e2etest.Client, values map[string]string) neturl.Values {
	t.Helper()
	doc, err := client.GetDoc(context.Background(), "/")
	require.NoError(t, err)
	form := e2etest.FormValues(doc.Find("form").First())
	token := form.Get("csrf_token")
	require.NotEmpty(t, token)
	out := neturl.Values{"csrf_token": []string{token}}
	for k, v := range values {
		out.Set(k, v)
	}
	return out
}

func postStatus(t *testing.T, client *e2etest.Client, urlPath string, values neturl.Values) int {
	t.Helper()
	resp, err := client.PostForm(context.Background(), urlPath, values)
	require.NoError(t, err)
	defer func() { assert.NoError(t, resp.Body.Close()) }()
	return resp.StatusCode
}

func TestHome(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)

	doc, err := server.Client().GetDoc(context.Background(), "/")
	require.NoError(t, err)
	scenarios := doc.Find("li.scenario")
	require.Equal(t, 2, scenarios.Length())
	require.Equal(t, 1, doc.Find("#scenario-trauma-polytrauma").Length())
	require.Equal(t, 1, doc.Find("#scenario-pediatric-meningitis").Length())
	doc.Find("li.scenario form").Each(func(_ int, form *goquery.Selection) {
		values := e2etest.FormValues(form)
		assert.NotEmpty(t, values.Get("csrf_token"))
		assert.NotEmpty(t, values.Get("scenario_id"))
	})
}

func TestSimulation_OptimalPath(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)
	client := server.Client()
	ctx := context.Background()

	doc, err := client.GetDoc(ctx, "/")
	require.NoError(t, err)
	doc, err = client.SubmitForm(ctx, doc, "#scenario-trauma-polytrauma form")
	require.NoError(t, err)

	require.Equal(t, "in_progress", doc.Find("#simulation").AttrOr("data-state", ""))
	require.Equal(t, 1, doc.Find("#decision-initial-assessment").Length())
	require.Equal(t, 1, doc.Find("#remaining").Length())
	require.Equal(t, "0", strings.TrimSpace(doc.Find("#score").Text()))
	require.Equal(t, 2, doc.Find(".options li").Length())

	doc, err = client.SubmitForm(ctx, doc, "form:has(input[value='abc-primary'])")
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("#decision-breathing-assessment").Length())
	require.Equal(t, "25", strings.TrimSpace(doc.Find("#score").Text()))

	doc, err = client.SubmitForm(ctx, doc, "form:has(input[value='needle-decompression'])")
	require.NoError(t, err)
	require.Equal(t, "complete", doc.Find("#simulation").AttrOr("data-state", ""))
	require.Equal(t, "55", strings.TrimSpace(doc.Find("#score").Text()))
	require.Equal(t, "needs_improvement", doc.Find(".performance").AttrOr("data-level", ""))
	require.Equal(t, 0, doc.Find(".decision").Length())
	require.Equal(t, 2, doc.Find(".decision-history li").Length())
	require.Equal(t, "Stabil", strings.TrimSpace(doc.Find("#stable").Text()))

	var snap apiSnapshot
	require.NoError(t, client.GetJSON(ctx, "/api/simulation", &snap))
	require.Equal(t, "complete", snap.State)
	require.Equal(t, "trauma-polytrauma", snap.ScenarioID)
	require.Equal(t, 55, snap.Score)
	require.True(t, snap.Complete)
	require.Equal(t, "needs_improvement", snap.Performance)
	require.Nil(t, snap.Current)

	doc, err = client.GetDoc(ctx, "/progress")
	require.NoError(t, err)
	attempts := doc.Find("ol.attempts li")
	require.Equal(t, 1, attempts.Length())
	require.Equal(t, "trauma-polytrauma", attempts.AttrOr("data-scenario", ""))
	require.Equal(t, "needs_improvement", attempts.AttrOr("data-performance", ""))
	require.Equal(t, "55", strings.TrimSpace(doc.Find("tr[data-scenario='trauma-polytrauma'] .best").Text()))

	doc, err = client.GetDoc(ctx, "/simulation/debrief")
	require.NoError(t, err)
	require.Equal(t, "false", doc.Find(".debrief").AttrOr("data-generated", ""))
	require.Equal(t, 2, doc.Find(".learning-points li").Length())
}

func TestSimulation_APIHidesAnswers(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)
	client := server.Client()
	ctx := context.Background()

	doc, err := client.GetDoc(ctx, "/")
	require.NoError(t, err)
	_, err = client.SubmitForm(ctx, doc, "#scenario-pediatric-meningitis form")
	require.NoError(t, err)

	var snap apiSnapshot
	require.NoError(t, client.GetJSON(ctx, "/api/simulation", &snap))
	require.Equal(t, "in_progress", snap.State)
	require.NotNil(t, snap.Current)
	require.Equal(t, "initial-pediatric", snap.Current.ID)
	require.NotEmpty(t, snap.Current.Options)
	for _, o := range snap.Current.Options {
		require.NotEmpty(t, o.Text)
		require.Nil(t, o.Correct)
	}

	other, err := e2etest.NewClient(server.URL())
	require.NoError(t, err)
	var fresh apiSnapshot
	require.NoError(t, other.GetJSON(ctx, "/api/simulation", &fresh))
	require.Equal(t, "not_started", fresh.State)
}

func TestSimulation_ContractViolations(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)
	client := server.Client()
	ctx := context.Background()

	tests := []struct {
		name   string
		path   string
		values map[string]string
		want   int
	}{
		{name: "choose before start", path: "/simulation/choose",
			values: map[string]string{"option_id": "abc-primary"}, want: http.StatusConflict},
		{name: "unknown scenario", path: "/simulation/start",
			values: map[string]string{"scenario_id": "cardiac-arrest"}, want: http.StatusNotFound},
		{name: "start", path: "/simulation/start",
			values: map[string]string{"scenario_id": "trauma-polytrauma"}, want: http.StatusOK},
		{name: "unknown option", path: "/simulation/choose",
			values: map[string]string{"option_id": "defibrillate"}, want: http.StatusUnprocessableEntity},
		{name: "option of another decision point", path: "/simulation/choose",
			values: map[string]string{"option_id": "needle-decompression"}, want: http.StatusUnprocessableEntity},
		{name: "terminal option", path: "/simulation/choose",
			values: map[string]string{"option_id": "direct-imaging"}, want: http.StatusOK},
		{name: "choose after completion", path: "/simulation/choose",
			values: map[string]string{"option_id": "abc-primary"}, want: http.StatusConflict},
	}
	for _, tt := range tests {
		got := postStatus(t, client, tt.path, csrfValues(t, client, tt.values))
		require.Equal(t, tt.want, got, tt.name)
	}

	var snap apiSnapshot
	require.NoError(t, client.GetJSON(ctx, "/api/simulation", &snap))
	require.Equal(t, -20, snap.Score)
	require.True(t, snap.Complete)

	doc, err := client.GetDoc(ctx, "/simulation")
	require.NoError(t, err)
	require.Equal(t, "Stabil değil", strings.TrimSpace(doc.Find("#stable").Text()))
	require.Equal(t, 3, doc.Find(".complications li").Length())
}

func TestSimulation_DebriefBeforeCompletion(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)
	client := server.Client()
	ctx := context.Background()

	resp, err := client.Get(ctx, "/simulation/debrief")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	got := postStatus(t, client, "/simulation/start",
		csrfValues(t, client, map[string]string{"scenario_id": "trauma-polytrauma"}))
	require.Equal(t, http.StatusOK, got)
	resp, err = client.Get(ctx, "/simulation/debrief")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSimulation_RejectsMissingCSRFToken(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)

	got := postStatus(t, server.Client(), "/simulation/start", neturl.Values{"scenario_id": []string{"trauma-polytrauma"}})
	require.Equal(t, http.StatusBadRequest, got)
}

func TestSimulation_HTMXFragment(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)
	client := server.Client()
	ctx := context.Background()

	doc, err := client.PostHTMX(ctx, "/simulation/start",
		csrfValues(t, client, map[string]string{"scenario_id": "pediatric-meningitis"}))
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("section#simulation").Length())
	require.Equal(t, 0, doc.Find("nav").Length())

	doc, err = client.PostHTMX(ctx, "/simulation/choose",
		csrfValues(t, client, map[string]string{"option_id": "immediate-antibiotics"}))
	require.NoError(t, err)
	require.Equal(t, "complete", doc.Find("#simulation").AttrOr("data-state", ""))
	require.Equal(t, "30", strings.TrimSpace(doc.Find("#score").Text()))
	require.Equal(t, 2, doc.Find(".improvements li").Length())
}

func TestSimulation_Reset(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)
	client := server.Client()
	ctx := context.Background()

	doc, err := client.GetDoc(ctx, "/")
	require.NoError(t, err)
	doc, err = client.SubmitForm(ctx, doc, "#scenario-trauma-polytrauma form")
	require.NoError(t, err)
	doc, err = client.SubmitForm(ctx, doc, "form[action='/simulation/reset']")
	require.NoError(t, err)
	require.Equal(t, 2, doc.Find("li.scenario").Length())

	var snap apiSnapshot
	require.NoError(t, client.GetJSON(ctx, "/api/simulation", &snap))
	require.Equal(t, "not_started", snap.State)
	require.Equal(t, 0, snap.Score)

	doc, err = client.GetDoc(ctx, "/progress")
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("p.empty").Length())
}

func TestSimulation_Stream(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)
	client := server.Client()
	ctx := context.Background()

	resp, err := client.Get(ctx, "/simulation/stream")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got := postStatus(t, client, "/simulation/start",
		csrfValues(t, client, map[string]string{"scenario_id": "trauma-polytrauma"}))
	require.Equal(t, http.StatusOK, got)

	resp, err = client.Get(ctx, "/simulation/stream")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event: snapshot\n", event)
	data, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(data, "data: {"), data)
	require.Contains(t, data, `"state":"in_progress"`)
	require.Contains(t, data, `"remaining":`)

	// A terminal decision ends the stream after the completion event.
	got = postStatus(t, client, "/simulation/choose",
		csrfValues(t, client, map[string]string{"option_id": "direct-imaging"}))
	require.Equal(t, http.StatusOK, got)
	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Contains(t, string(rest), "event: completed\n")
}

func TestHealthyAndMetrics(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)
	client := server.Client()
	ctx := context.Background()

	resp, err := client.Get(ctx, "/api/healthy")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	got := postStatus(t, client, "/simulation/start",
		csrfValues(t, client, map[string]string{"scenario_id": "pediatric-meningitis"}))
	require.Equal(t, http.StatusOK, got)

	resp, err = client.Get(ctx, "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Contains(t, string(body), `medresident_simulations_started_total{scenario="pediatric-meningitis"} 1`)
}
