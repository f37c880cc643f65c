package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/patron/internal/tasks"
)

// TasksController handles task queue management endpoints.
type TasksController struct {
	queue              TaskQueue
	auditRetentionDays int
}

// NewTasksController creates a new TasksController.
func NewTasksController(queue TaskQueue, auditRetentionDays int) *TasksController {
	return &TasksController{queue: queue, auditRetentionDays: auditRetentionDays}
}

// TaskTypeInfo describes an available task type.
type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

// ListTaskTypes handles GET /api/tasks/types
// Returns the list of available task types that can be triggered.
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	types := []TaskTypeInfo{
		{
			Type:        "sync_account",
			Description: "Sync the loans and holds of one account",
			Queue:       tasks.SyncAccountTask{}.Config().Name,
		},
		{
			Type:        "cleanup_audit_records",
			Description: "Delete audited provider responses past their retention",
			Queue:       tasks.CleanupAuditRecordsTask{}.Config().Name,
		},
	}

	c.JSON(http.StatusOK, gin.H{
		"task_types": types,
	})
}

// GetTaskStatus handles GET /api/tasks/:id
// Returns the status of a specific task.
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": tasks.StatusName(status),
	})
}

// RunTaskRequest is the request body for running a task.
type RunTaskRequest struct {
	// ProfileID and AccountID are required for sync_account
	ProfileID *int `json:"profile_id,omitempty"`
	AccountID *int `json:"account_id,omitempty"`
	// RetentionDays overrides the configured audit retention for cleanup_audit_records
	RetentionDays int `json:"retention_days,omitempty"`
}

// RunTask handles POST /api/tasks/:type/run
// Manually triggers a task of the specified type.
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")

	var req RunTaskRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	var task backlite.Task
	switch taskType {
	case "sync_account":
		if req.ProfileID == nil || req.AccountID == nil {
			respondBadRequest(c, "profile_id and account_id are required for sync_account task")
			return
		}
		task = tasks.SyncAccountTask{ProfileID: *req.ProfileID, AccountID: *req.AccountID}

	case "cleanup_audit_records":
		days := req.RetentionDays
		if days <= 0 {
			days = tc.auditRetentionDays
		}
		task = tasks.CleanupAuditRecordsTask{RetentionDays: days}

	default:
		respondBadRequest(c, fmt.Sprintf("unknown task type: %s", taskType))
		return
	}

	enqueueTask(c, tc.queue, task, "task enqueued")
}

// enqueueTask adds task to queue and responds 202 with the task ID.
func enqueueTask(c *gin.Context, queue TaskQueue, task backlite.Task, message string) {
	id, err := queue.Enqueue(task)
	if err != nil {
		respondInternalError(c, err, "enqueue "+task.Config().Name)
		return
	}
	respondAccepted(c, message, gin.H{"task_id": id, "queue": task.Config().Name})
}
