package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mediafetch/internal/logtail"
	"mediafetch/internal/strategy"
)

func (h *handlers) listWindows(c *gin.Context) {
	ws, err := h.deps.Store.ListWindows(c.Request.Context())
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (h *handlers) createWindow(c *gin.Context) {
	var req CreateWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	w, err := h.deps.Store.CreateWindow(c.Request.Context(), req.Start, req.End)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *handlers) deleteWindow(c *gin.Context) {
	if err := h.deps.Store.DeleteWindow(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) strategies(c *gin.Context) {
	resp := StrategiesResponse{
		Download:        []StrategyInfo{},
		Save:            []StrategyInfo{},
		DefaultDownload: strategy.DefaultDownload,
		DefaultSave:     strategy.DefaultSave,
	}
	if h.deps.Strategies != nil {
		for _, i := range h.deps.Strategies.Downloads() {
			resp.Download = append(resp.Download, StrategyInfo(i))
		}
		for _, i := range h.deps.Strategies.Saves() {
			resp.Save = append(resp.Save, StrategyInfo(i))
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) logs(c *gin.Context) {
	if h.deps.ReadLogs == nil {
		c.JSON(http.StatusOK, LogsResponse{Lines: []string{}})
		return
	}
	n := logtail.DefaultLines
	if raw := c.Query("lines"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > logtail.DefaultLines {
			badRequest(c, "lines must be between 1 and 500")
			return
		}
		n = v
	}
	lines, err := h.deps.ReadLogs(n)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, LogsResponse{Lines: lines})
}

func (h *handlers) listEvents(c *gin.Context) {
	f := eventFilter(c)
	if c.IsAborted() {
		return
	}
	evs, err := h.deps.Store.ListEvents(c.Request.Context(), f)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, evs)
}

func (h *handlers) dismissEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "event id must be an integer")
		return
	}
	if err := h.deps.Store.DismissEvent(c.Request.Context(), id); err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) engine(c *gin.Context) {
	var resp EngineResponse
	if h.deps.Engine != nil {
		resp.Engine = h.deps.Engine()
	}
	if h.deps.Scheduler != nil {
		s := h.deps.Scheduler()
		resp.Scheduler = &s
	}
	if h.deps.JobActive != nil {
		resp.JobActive = h.deps.JobActive()
	}
	c.JSON(http.StatusOK, resp)
}
