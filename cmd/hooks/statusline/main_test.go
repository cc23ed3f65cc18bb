package main

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSecreto/UniMem/pkg/hooks"
)

func TestFormatStatusLine(t *testing.T) {
	plain := options{format: "default"}
	pending := &WorkerStatus{Project: "unimem", TotalObservations: 42, ActiveSessions: 2}
	pending.PendingHandoff = &struct {
		FromCLI string `json:"from_cli"`
		Reason  string `json:"reason"`
	}{FromCLI: "gemini", Reason: "rate_limit"}
	pending.Stats.HandoffsCreated = 3
	pending.Stats.HandoffsPickedUp = 2

	tests := []struct {
		name string
		st   *WorkerStatus
		o    options
		want string
	}{
		{"offline", nil, plain, "[unimem] ○"},
		{"no project", &WorkerStatus{}, plain, "[unimem] ●"},
		{"default", pending, plain, "[unimem] ● 42 memories | handoff from gemini (rate_limit) | 2 active"},
		{"compact", pending, options{format: "compact"}, "[u] ● 42 ⇄3/2 ↪"},
		{"minimal", pending, options{format: "minimal"}, "● 42"},
		{"colored offline", nil, options{colors: true}, colorCyan + "[unimem]" + colorReset + " " + colorGray + "○" + colorReset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatStatusLine(tt.st, tt.o))
		})
	}
}

func TestStatusOptions(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("UNIMEM_STATUSLINE_FORMAT", "")
	t.Setenv("UNIMEM_STATUSLINE_COLORS", "")
	o := statusOptions()
	assert.False(t, o.colors)
	assert.Equal(t, "default", o.format)

	t.Setenv("UNIMEM_STATUSLINE_COLORS", "true")
	t.Setenv("UNIMEM_STATUSLINE_FORMAT", "compact")
	o = statusOptions()
	assert.True(t, o.colors)
	assert.Equal(t, "compact", o.format)
}

func TestProjectOf(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, projectOf(hooks.Input{}))
	assert.Equal(t, hooks.DeriveProjectName(dir), projectOf(hooks.Input{"cwd": dir}))
	assert.Equal(t, hooks.DeriveProjectName(dir), projectOf(hooks.Input{
		"cwd":       "/elsewhere",
		"workspace": map[string]interface{}{"project_dir": dir},
	}))
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"project":            r.URL.Query().Get("project"),
			"total_observations": 5,
		})
	}))
	defer srv.Close()
	_, p, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)

	st := fetchStatus(port, "unimem")
	require.NotNil(t, st)
	assert.Equal(t, "unimem", st.Project)
	assert.Equal(t, int64(5), st.TotalObservations)

	srv.Close()
	assert.Nil(t, fetchStatus(port, "unimem"))
}
