package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SyncController reports on and triggers the periodic account sync.
type SyncController struct {
	scheduler SyncScheduler
}

func NewSyncController(scheduler SyncScheduler) *SyncController {
	return &SyncController{scheduler: scheduler}
}

// Status handles GET /api/sync/status
func (sc *SyncController) Status(c *gin.Context) {
	resp := gin.H{
		"running": sc.scheduler.IsRunning(),
		"syncing": sc.scheduler.IsSyncing(),
	}
	if next := sc.scheduler.GetNextRunTime(); next != nil {
		resp["next_run"] = next.Format(time.RFC3339)
	}
	if summary := sc.scheduler.LastSummary(); summary != nil {
		resp["last_summary"] = gin.H{
			"accounts":    summary.Accounts,
			"succeeded":   summary.Succeeded,
			"skipped":     summary.Skipped,
			"failed":      summary.Failed,
			"duration_ms": summary.Duration.Milliseconds(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// RunNow handles POST /api/sync/run
func (sc *SyncController) RunNow(c *gin.Context) {
	if sc.scheduler.IsSyncing() {
		respondError(c, http.StatusConflict, "sync already in progress")
		return
	}
	sc.scheduler.RunNow()
	respondAccepted(c, "sync started", nil)
}
