package sweeper

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/api"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/mikepea/snip/pkg/snip/tasks"
)

// Handler exposes sweep submission and task polling
type Handler struct {
	queue *tasks.Queue
}

// NewHandler creates a new sweeper handler
func NewHandler(queue *tasks.Queue) *Handler {
	return &Handler{queue: queue}
}

// TaskResponse reports the state of a background task
type TaskResponse struct {
	TaskID string           `json:"task_id"`
	Status models.TaskState `json:"status"`
	Error  string           `json:"error,omitempty"`
	Result interface{}      `json:"result,omitempty"`
}

// RegisterRoutes registers sweeper routes on the links group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/delete-unused-links", h.Submit)
	rg.GET("/task-status/:task_id", h.Status)
}

// Submit queues a sweep of links unused for the given number of days
// @Summary Archive unused links
// @Description Queue a background job that archives and removes links last used more than days ago
// @Tags tasks
// @Produce json
// @Param days query int true "Idle days (0-36500)"
// @Success 200 {object} TaskResponse
// @Failure 400 {object} map[string]string "Invalid days"
// @Failure 503 {object} map[string]string "Task queue full"
// @Router /links/delete-unused-links [post]
func (h *Handler) Submit(c *gin.Context) {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || !ValidDays(days) {
		api.WriteError(c, ErrInvalidDays)
		return
	}

	task, err := h.queue.Submit(c.Request.Context(), TaskKind, Payload{Days: days})
	if err != nil {
		api.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, TaskResponse{TaskID: task.ID, Status: task.State})
}

// Status returns the state of a task
// @Summary Task status
// @Tags tasks
// @Produce json
// @Param task_id path string true "Task ID"
// @Success 200 {object} TaskResponse
// @Failure 404 {object} map[string]string "Task not found"
// @Router /links/task-status/{task_id} [get]
func (h *Handler) Status(c *gin.Context) {
	task, err := h.queue.Status(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func toTaskResponse(task *models.Task) TaskResponse {
	resp := TaskResponse{
		TaskID: task.ID,
		Status: task.State,
		Error:  task.Error,
	}
	if task.Result != "" {
		resp.Result = json.RawMessage(task.Result)
	}
	return resp
}
