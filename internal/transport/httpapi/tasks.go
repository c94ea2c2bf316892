package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mediafetch/internal/storage"
	"mediafetch/internal/strategy"
)

func (h *handlers) listTasks(c *gin.Context) {
	f := storage.TaskFilter{State: storage.State(strings.ToUpper(c.Query("state")))}
	if f.State != "" && !f.State.Valid() {
		badRequest(c, "unknown state "+c.Query("state"))
		return
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	tasks, err := h.deps.Store.ListTasks(c.Request.Context(), f)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *handlers) createTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	in := storage.NewTask{
		Sources:          req.Sources,
		DownloadStrategy: strings.TrimSpace(req.DownloadStrategy),
		SaveStrategy:     strings.TrimSpace(req.SaveStrategy),
		CatalogueName:    req.CatalogueName,
		Priority:         req.Priority,
	}
	if in.DownloadStrategy == "" {
		in.DownloadStrategy = strategy.DefaultDownload
	}
	if in.SaveStrategy == "" {
		in.SaveStrategy = strategy.DefaultSave
	}
	t, err := h.deps.Store.CreateTask(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *handlers) getTask(c *gin.Context) {
	t, err := h.deps.Store.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *handlers) updateTask(c *gin.Context) {
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	p := storage.TaskPatch{
		DownloadStrategy: req.DownloadStrategy,
		SaveStrategy:     req.SaveStrategy,
		CatalogueName:    req.CatalogueName,
		Priority:         req.Priority,
	}
	if req.Sources != nil {
		src := []string(*req.Sources)
		p.Sources = &src
	}
	t, err := h.deps.Store.UpdateTask(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *handlers) deleteTask(c *gin.Context) {
	if err := h.deps.Store.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) requeueTask(c *gin.Context) {
	t, err := h.deps.Store.RequeueTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
