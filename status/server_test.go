package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/rowlife/runtime"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := NewServer("", ProgressFunc(func() []runtime.Progress { return nil }), nil)
	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProgress(t *testing.T) {
	t.Parallel()
	progress := []runtime.Progress{
		{ID: 0, Generation: 3, State: runtime.StateDone},
		{ID: 1, Generation: 2, State: runtime.StateExchanging},
	}
	s := NewServer("run-1", ProgressFunc(func() []runtime.Progress { return progress }), nil)

	rec := get(t, s.Handler(), "/v1/progress")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"run_id": "run-1",
		"participants": [
			{"id": 0, "generation": 3, "state": "done"},
			{"id": 1, "generation": 2, "state": "exchanging"}
		],
		"done": false
	}`, rec.Body.String())

	progress[1] = runtime.Progress{ID: 1, Generation: 3, State: runtime.StateDone}
	var body ProgressResponse
	require.NoError(t, json.Unmarshal(get(t, s.Handler(), "/v1/progress").Body.Bytes(), &body))
	assert.True(t, body.Done)
}

func TestProgressFromCluster(t *testing.T) {
	t.Parallel()
	c, err := runtime.NewCluster(runtime.ClusterParams{Participants: 3, Columns: 4, Iterations: 2}, nil)
	require.NoError(t, err)
	s := NewServer(c.RunID(), c, nil)

	var before ProgressResponse
	require.NoError(t, json.Unmarshal(get(t, s.Handler(), "/v1/progress").Body.Bytes(), &before))
	assert.Len(t, before.Participants, 3)
	assert.False(t, before.Done)
	assert.Equal(t, c.RunID(), before.RunID)
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	s := NewServer("", ProgressFunc(func() []runtime.Progress { return nil }), nil)
	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestListenAndShutdown(t *testing.T) {
	t.Parallel()
	s := NewServer("", ProgressFunc(func() []runtime.Progress { return nil }), nil)
	addr, err := s.ListenAndServe("127.0.0.1:0")
	require.NoError(t, err)

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr.String() + "/healthz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "ok")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
