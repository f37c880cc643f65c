package http

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/patron/internal/scheduler"
	"github.com/mrlokans/patron/internal/tasks"
)

func TestTasksController(t *testing.T) {
	t.Run("lists task types", func(t *testing.T) {
		s := setupTestServer(t, &fakeQueue{})
		w := s.do(t, "GET", "/api/tasks/types", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "sync_account")
		assert.Contains(t, w.Body.String(), "cleanup_audit_records")
	})

	t.Run("reports task status", func(t *testing.T) {
		s := setupTestServer(t, &fakeQueue{})
		w := s.do(t, "GET", "/api/tasks/abc", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"success"`)
	})

	t.Run("runs audit cleanup with configured retention", func(t *testing.T) {
		queue := &fakeQueue{}
		s := setupTestServer(t, queue)
		w := s.do(t, "POST", "/api/tasks/cleanup_audit_records/run", nil)
		require.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, queue.tasks, 1)
		assert.Equal(t, tasks.CleanupAuditRecordsTask{RetentionDays: 30}, queue.tasks[0])
	})

	t.Run("sync requires ids", func(t *testing.T) {
		s := setupTestServer(t, &fakeQueue{})
		w := s.do(t, "POST", "/api/tasks/sync_account/run", jsonBody{"profile_id": 1})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("sync with ids", func(t *testing.T) {
		queue := &fakeQueue{}
		s := setupTestServer(t, queue)
		w := s.do(t, "POST", "/api/tasks/sync_account/run", jsonBody{"profile_id": 1, "account_id": 0})
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, tasks.SyncAccountTask{ProfileID: 1, AccountID: 0}, queue.tasks[0])
	})

	t.Run("unknown type", func(t *testing.T) {
		s := setupTestServer(t, &fakeQueue{})
		w := s.do(t, "POST", "/api/tasks/enrich_book/run", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("enqueue failure", func(t *testing.T) {
		s := setupTestServer(t, &fakeQueue{err: errors.New("queue down")})
		w := s.do(t, "POST", "/api/tasks/cleanup_audit_records/run", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("routes absent without a queue", func(t *testing.T) {
		s := setupTestServer(t, nil)
		w := s.do(t, "GET", "/api/tasks/types", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

type fakeScheduler struct {
	syncing bool
	runs    int
	next    *time.Time
	summary *scheduler.Summary
}

func (f *fakeScheduler) IsRunning() bool                 { return f.next != nil }
func (f *fakeScheduler) IsSyncing() bool                 { return f.syncing }
func (f *fakeScheduler) RunNow()                         { f.runs++ }
func (f *fakeScheduler) LastSummary() *scheduler.Summary { return f.summary }
func (f *fakeScheduler) GetNextRunTime() *time.Time      { return f.next }

func TestSyncController(t *testing.T) {
	next := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	sched := &fakeScheduler{
		next:    &next,
		summary: &scheduler.Summary{Accounts: 3, Succeeded: 2, Skipped: 1},
	}
	s := setupTestServer(t, nil)
	s.router = NewRouter(RouterConfig{Profiles: s.profiles, Books: s.registry, Scheduler: sched})

	w := s.do(t, "GET", "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"next_run":"2026-01-01T06:00:00Z"`)
	assert.Contains(t, w.Body.String(), `"succeeded":2`)

	w = s.do(t, "POST", "/api/sync/run", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, sched.runs)

	sched.syncing = true
	w = s.do(t, "POST", "/api/sync/run", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, sched.runs)
}
