package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/mem/internal/store"
)

func saveMemory(t *testing.T, srv *Server, title, content, project string) string {
	t.Helper()
	body := fmt.Sprintf(`{"title":%q,"content":%q,"project":%q,"type":"decision"}`, title, content, project)
	w := do(t, srv, "POST", "/api/memories", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestSaveMemory(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/memories", `{"title":"Use JWT","content":"tokens expire after 1h","project":"/work/app"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "Use JWT", body["title"])
	assert.Equal(t, "manual", body["type"])
	assert.Equal(t, "project", body["scope"])
	assert.Equal(t, "active", body["status"])
	assert.NotEmpty(t, body["id"])
}

func TestSaveMemoryRejectsBadInput(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"title":`},
		{"blank title", `{"title":"  ","content":"c"}`},
		{"blank content", `{"title":"t","content":""}`},
		{"unknown type", `{"title":"t","content":"c","type":"rumor"}`},
		{"auto type reserved", `{"title":"t","content":"c","type":"auto"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/memories", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestGetMemory(t *testing.T) {
	srv := testServer(t)
	id := saveMemory(t, srv, "Pick sqlite", "single file store", "/work/app")

	w := do(t, srv, "GET", "/api/memories/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Pick sqlite", body["title"])
	assert.Equal(t, float64(0), body["access_count"])

	// The first read was counted.
	w = do(t, srv, "GET", "/api/memories/"+id, "")
	assert.Equal(t, float64(1), decode(t, w)["access_count"])

	w = do(t, srv, "GET", "/api/memories/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteMemory(t *testing.T) {
	srv := testServer(t)
	id := saveMemory(t, srv, "temp", "to be removed", "")

	w := do(t, srv, "DELETE", "/api/memories/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, "DELETE", "/api/memories/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPromoteDemote(t *testing.T) {
	srv := testServer(t)
	id := saveMemory(t, srv, "Team convention", "always squash merge", "/work/app")

	w := do(t, srv, "GET", "/api/memories?project=/work/other", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["count"])

	w = do(t, srv, "POST", "/api/memories/"+id+"/promote", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "global", decode(t, w)["scope"])

	w = do(t, srv, "GET", "/api/memories?project=/work/other", "")
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = do(t, srv, "POST", "/api/memories/"+id+"/demote", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "project", decode(t, w)["scope"])

	w = do(t, srv, "POST", "/api/memories/missing/promote", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecentMemoriesBadLimit(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/memories?limit=lots", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchUnified(t *testing.T) {
	srv := testServer(t)
	saveMemory(t, srv, "Auth decision", "we chose jwt for auth", "/work/app")

	w := do(t, srv, "POST", "/api/files",
		`{"source_path":"/work/app/README.md","project_path":"/work/app","project_name":"app","title":"README","content":"jwt setup guide","file_mtime_secs":10}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "new", decode(t, w)["outcome"])

	w = do(t, srv, "GET", "/api/search?q=jwt&project=/work/app", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, float64(2), body["count"])
	results := body["results"].([]any)
	assert.Equal(t, "memory", results[0].(map[string]any)["kind"])
	assert.Equal(t, "file", results[1].(map[string]any)["kind"])
	assert.Equal(t, "/work/app/README.md", results[1].(map[string]any)["path"])
}

func TestSearchRequiresQuery(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchOperatorSyntax(t *testing.T) {
	srv := testServer(t)
	saveMemory(t, srv, "t", "some content", "")

	w := do(t, srv, "GET", "/api/search?q=NEAR%28content", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestUpsertFileOutcomes(t *testing.T) {
	srv := testServer(t)
	body := `{"source_path":"/p/CLAUDE.md","project_name":"p","title":"t","content":"c","file_mtime_secs":%d}`

	w := do(t, srv, "POST", "/api/files", fmt.Sprintf(body, 1))
	assert.Equal(t, "new", decode(t, w)["outcome"])
	w = do(t, srv, "POST", "/api/files", fmt.Sprintf(body, 1))
	assert.Equal(t, "unchanged", decode(t, w)["outcome"])
	w = do(t, srv, "POST", "/api/files", fmt.Sprintf(body, 2))
	assert.Equal(t, "updated", decode(t, w)["outcome"])

	w = do(t, srv, "POST", "/api/files", `{"project_name":"p","content":"c"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecay(t *testing.T) {
	srv := testServer(t)
	saveMemory(t, srv, "fresh", "just saved", "")

	w := do(t, srv, "POST", "/api/decay", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, 0.1, body["threshold"])
	assert.Equal(t, false, body["dry_run"])

	// A fresh memory scores 1.0, so a threshold above that catches it.
	w = do(t, srv, "POST", "/api/decay", `{"threshold":2,"dry_run":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = do(t, srv, "GET", "/api/stats", "")
	assert.Equal(t, float64(1), decode(t, w)["active_count"])

	w = do(t, srv, "POST", "/api/decay", `{"threshold":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContextEndpoint(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/context?project=/work/app", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No recent memories for this project.", decode(t, w)["context"])

	saveMemory(t, srv, "Deploy notes", "use blue green", "/work/app")
	w = do(t, srv, "GET", "/api/context?project=/work/app&limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	ctx := decode(t, w)["context"].(string)
	assert.True(t, strings.HasPrefix(ctx, "# Recent Session Memory"))
	assert.Contains(t, ctx, "Deploy notes")
}

func TestSessionsAndGain(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/sessions/init", `{"session_id":"sess-1","project":"/work/app"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "sess-1", body["id"])
	assert.Nil(t, body["ended_at"])

	w = do(t, srv, "POST", "/api/sessions/init", `{"project":"/work/app"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["id"], 36)

	w = do(t, srv, "POST", "/api/sessions/sess-1/end", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ended", decode(t, w)["status"])

	_, err := srv.db.UpdateSessionAnalytics(context.Background(), "sess-1", sessionAnalytics())
	require.NoError(t, err)

	w = do(t, srv, "GET", "/api/gain", "")
	require.Equal(t, http.StatusOK, w.Code)
	gain := decode(t, w)
	assert.Equal(t, float64(1), gain["session_count"])
	assert.InDelta(t, 50.0, gain["cache_efficiency_pct"], 1e-9)
	assert.Len(t, gain["top_projects"], 1)

	w = do(t, srv, "GET", "/api/stats", "")
	assert.Equal(t, float64(2), decode(t, w)["session_count"])
}

func TestSessionInitInvalidJSON(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/sessions/init", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func sessionAnalytics() store.SessionAnalytics {
	return store.SessionAnalytics{TurnCount: 3, DurationSecs: 90, InputTokens: 100, OutputTokens: 50, CacheReadTokens: 100}
}
