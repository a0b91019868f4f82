package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raffleworks/topicdraw/internal/api"
	"github.com/raffleworks/topicdraw/internal/engine"
	"github.com/raffleworks/topicdraw/internal/participant"
	"github.com/raffleworks/topicdraw/internal/store"
	"github.com/raffleworks/topicdraw/internal/testutil"
)

var apiNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "draws.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	threads := testutil.NewScriptedThreads()
	eng := engine.New(engine.Options{
		Store: st,
		Deriver: &participant.Deriver{
			Threads: threads,
			Groups:  &testutil.StaticGroups{},
		},
		Scheduler:     &testutil.MemoryScheduler{},
		Notifier:      &testutil.MemoryNotifier{},
		Perms:         testutil.AllowAll{},
		Logger:        slog.New(slog.DiscardHandler),
		Enabled:       true,
		GlobalMinimum: 2,
		LockDelay:     30 * time.Minute,
		Now:           testutil.FixedClock(apiNow),
	})
	return api.NewServer(eng, slog.New(slog.DiscardHandler)).Router()
}

func postJSON(t *testing.T, r *gin.Engine, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validCreateBody() map[string]any {
	return map[string]any{
		"topic_id":          42,
		"caller_id":         7,
		"title":             "Spring giveaway",
		"prize_description": "One signed book",
		"draw_time":         apiNow.Add(2 * time.Hour).Format(time.RFC3339),
		"winner_count":      3,
		"min_participants":  2,
		"backup_strategy":   "cancel",
	}
}

func TestCreate_Success(t *testing.T) {
	r := newRouter(t)

	w := postJSON(t, r, "/lottery/create", validCreateBody())
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Lottery struct {
			TopicID int64  `json:"topic_id"`
			Title   string `json:"title"`
			Status  string `json:"status"`
			Policy  string `json:"policy"`
		} `json:"lottery"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(42), resp.Lottery.TopicID)
	assert.Equal(t, "Spring giveaway", resp.Lottery.Title)
	assert.Equal(t, "running", resp.Lottery.Status)
	assert.Equal(t, "random", resp.Lottery.Policy)
}

func TestCreate_ValidationErrorsListed(t *testing.T) {
	r := newRouter(t)
	body := validCreateBody()
	body["title"] = ""
	body["draw_time"] = apiNow.Add(-time.Hour).Format(time.RFC3339)

	w := postJSON(t, r, "/lottery/create", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Errors  []struct {
			Field  string `json:"field"`
			Reason string `json:"reason"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "title", resp.Errors[0].Field)
	assert.Equal(t, "draw_at", resp.Errors[1].Field)
}

func TestCreate_MalformedTimestampRejectedAtBoundary(t *testing.T) {
	r := newRouter(t)
	body := validCreateBody()
	body["draw_time"] = "next tuesday"

	w := postJSON(t, r, "/lottery/create", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "draw_time")
}

func TestCreate_SpecifiedPositionsWinOverCount(t *testing.T) {
	r := newRouter(t)
	body := validCreateBody()
	body["specified_positions"] = "3, 8"

	w := postJSON(t, r, "/lottery/create", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Lottery struct {
			Policy    string `json:"policy"`
			Positions []int  `json:"positions"`
		} `json:"lottery"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "specified", resp.Lottery.Policy)
	assert.Equal(t, []int{3, 8}, resp.Lottery.Positions)
}

func TestCreate_MissingRequiredIDs(t *testing.T) {
	r := newRouter(t)
	w := postJSON(t, r, "/lottery/create", map[string]any{"title": "no ids"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShow_ReturnsDraw(t *testing.T) {
	r := newRouter(t)
	w := postJSON(t, r, "/lottery/create", validCreateBody())
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/lottery/42", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Lottery struct {
			Status  string `json:"status"`
			Winners []any  `json:"winners"`
		} `json:"lottery"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "running", resp.Lottery.Status)
	assert.NotNil(t, resp.Lottery.Winners)
}

func TestShow_UnknownTopic(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/lottery/%d", 777), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShow_BadTopicID(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/lottery/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
