package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"email-bug-tracker-go/internal/config"
	"email-bug-tracker-go/internal/database"
	"email-bug-tracker-go/internal/mailbox"
	"email-bug-tracker-go/internal/metrics"
	"email-bug-tracker-go/internal/model"
	"email-bug-tracker-go/internal/parser"
	"email-bug-tracker-go/internal/reconciler"
	"email-bug-tracker-go/internal/scheduler"
	"email-bug-tracker-go/internal/store"
)

var testMetrics = metrics.NewMetrics()

func setupTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	st := store.New(db)

	dial := func() (mailbox.Source, error) { return nil, errors.New("no mailbox in tests") }
	r := reconciler.New(dial, st, testMetrics, 0, time.Millisecond)
	sched := scheduler.NewScheduler(&config.SchedulerConfig{IntervalMinutes: 60}, r)

	router := gin.New()
	NewHandlers(db, st, sched).SetupRoutes(router)
	return router, st
}

func seedBug(t *testing.T, st *store.Store, messageID, bugID, subject, body string) {
	t.Helper()
	_, err := st.Reconcile(messageID, bugID, subject, parser.ExtractFields(body))
	require.NoError(t, err)
}

func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListBugsEndpoint(t *testing.T) {
	router, st := setupTestRouter(t)
	seedBug(t, st, "<h1@example.com>", "API-1", "Bug ID: API-1 - Login broken", "login fails\npriority: high")
	seedBug(t, st, "<h2@example.com>", "API-2", "Bug ID: API-2 - Export slow", "export takes minutes")

	w := doRequest(router, http.MethodGet, "/api/v1/bugs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Bugs       []BugResponse `json:"bugs"`
		Pagination struct {
			Page  int   `json:"page"`
			Limit int   `json:"limit"`
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Bugs, 2)
	assert.EqualValues(t, 2, resp.Pagination.Total)
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.Equal(t, 50, resp.Pagination.Limit)
}

func TestListBugsSearchAndFilter(t *testing.T) {
	router, st := setupTestRouter(t)
	seedBug(t, st, "<h1@example.com>", "API-1", "Bug ID: API-1 - Login broken", "login fails\npriority: high")
	seedBug(t, st, "<h2@example.com>", "API-2", "Bug ID: API-2 - Export slow", "export takes minutes")

	w := doRequest(router, http.MethodGet, "/api/v1/bugs?search=login", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Bugs []BugResponse `json:"bugs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Bugs, 1)
	assert.Equal(t, "API-1", resp.Bugs[0].BugID)

	w = doRequest(router, http.MethodGet, "/api/v1/bugs?priority=high", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Bugs, 1)
	assert.Equal(t, "API-1", resp.Bugs[0].BugID)

	w = doRequest(router, http.MethodGet, "/api/v1/bugs?status=not-a-status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/bugs?priority=urgent", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBugEndpoint(t *testing.T) {
	router, st := setupTestRouter(t)
	seedBug(t, st, "<h1@example.com>", "API-1", "Bug ID: API-1 - Login broken", "login fails")

	w := doRequest(router, http.MethodGet, "/api/v1/bugs/API-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var bug BugResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bug))
	assert.Equal(t, "API-1", bug.BugID)
	assert.Equal(t, model.StatusOpen, bug.Status)

	w = doRequest(router, http.MethodGet, "/api/v1/bugs/MISSING-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateBugStatusEndpoint(t *testing.T) {
	router, st := setupTestRouter(t)
	seedBug(t, st, "<h1@example.com>", "API-1", "Bug ID: API-1 - Login broken", "login fails")

	body, _ := json.Marshal(StatusUpdateRequest{Status: model.StatusResolved})
	w := doRequest(router, http.MethodPatch, "/api/v1/bugs/API-1/status", body)
	require.Equal(t, http.StatusOK, w.Code)

	var bug BugResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bug))
	assert.Equal(t, model.StatusResolved, bug.Status)
	// A status patch is not an email-driven modification.
	assert.Equal(t, 0, bug.ModifiedCount)

	body, _ = json.Marshal(StatusUpdateRequest{Status: "wontfix"})
	w = doRequest(router, http.MethodPatch, "/api/v1/bugs/API-1/status", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPatch, "/api/v1/bugs/API-1/status", []byte("{}"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, _ = json.Marshal(StatusUpdateRequest{Status: model.StatusClosed})
	w = doRequest(router, http.MethodPatch, "/api/v1/bugs/MISSING-1/status", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBugModificationsEndpoint(t *testing.T) {
	router, st := setupTestRouter(t)
	seedBug(t, st, "<h1@example.com>", "API-1", "Bug ID: API-1", "desc\npriority: high")
	seedBug(t, st, "<h2@example.com>", "API-1", "Bug ID: API-1", "first update")
	seedBug(t, st, "<h3@example.com>", "API-1", "Bug ID: API-1", "second update")

	w := doRequest(router, http.MethodGet, "/api/v1/bug-modifications", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var counts []store.ModificationCount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	require.Len(t, counts, 1)
	assert.EqualValues(t, 2, counts[0].Count)

	w = doRequest(router, http.MethodGet, "/api/v1/bug-modifications?priority=high", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	require.Len(t, counts, 1)

	w = doRequest(router, http.MethodGet, "/api/v1/bug-modifications?priority=urgent", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheckEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Database)
	assert.Equal(t, "stopped", health.Metrics["scheduler"])
}

func TestSchedulerEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/scheduler/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "stopped", status["status"])

	w = doRequest(router, http.MethodPost, "/api/v1/scheduler/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/scheduler/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "running", status["status"])

	w = doRequest(router, http.MethodPost, "/api/v1/scheduler/start", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/scheduler/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
