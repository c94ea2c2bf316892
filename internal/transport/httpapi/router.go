package httpapi

import (
	"context"
	"net/http"
	hpprof "net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"

	"mediafetch/internal/storage"
	"mediafetch/internal/strategy"
	"mediafetch/internal/task/engine"
	"mediafetch/internal/task/scheduler"
	logx "mediafetch/pkg/logx"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Strategies lists registered strategy names.
type Strategies interface {
	Downloads() []strategy.Info
	Saves() []strategy.Info
}

// Deps are the components the API exposes. Optional fields may be nil.
type Deps struct {
	Store      storage.Store
	Strategies Strategies

	Engine    func() engine.Snapshot
	Scheduler func() scheduler.Snapshot
	JobActive func() bool

	// ReadLogs returns the tail of the execution log.
	ReadLogs func(n int) ([]string, error)
	Metrics  http.Handler
	// Ping reports store health for /healthz.
	Ping func(ctx context.Context) error
}

type handlers struct {
	deps Deps
	log  logx.Logger
}

// NewRouter builds the gin engine for cfg.
func NewRouter(cfg Config, deps Deps, log logx.Logger) *gin.Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &handlers{deps: deps, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), requestLog(log))

	r.GET("/healthz", h.health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := r.Group("/api", requireToken(cfg.Token), rateLimit(cfg.RatePerSec, cfg.Burst))
	api.GET("/tasks", h.listTasks)
	api.POST("/tasks", h.createTask)
	api.GET("/tasks/:id", h.getTask)
	api.PATCH("/tasks/:id", h.updateTask)
	api.DELETE("/tasks/:id", h.deleteTask)
	api.POST("/tasks/:id/requeue", h.requeueTask)

	api.GET("/windows", h.listWindows)
	api.POST("/windows", h.createWindow)
	api.DELETE("/windows/:id", h.deleteWindow)

	api.GET("/strategies", h.strategies)
	api.GET("/logs", h.logs)
	api.GET("/events", h.listEvents)
	api.POST("/events/:id/dismiss", h.dismissEvent)
	api.GET("/engine", h.engine)

	if cfg.Pprof {
		dbg := r.Group("/debug/pprof", requireToken(cfg.Token))
		dbg.GET("/", gin.WrapF(hpprof.Index))
		dbg.GET("/:profile", pprofHandler)
		dbg.POST("/:profile", pprofHandler)
	}
	return r
}

func (h *handlers) health(c *gin.Context) {
	if h.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Ping(ctx); err != nil {
			h.log.Warn("health check failed", logx.Err(err))
			c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Time: time.Now().UTC()})
			return
		}
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Time: time.Now().UTC()})
}

func pprofHandler(c *gin.Context) {
	switch name := c.Param("profile"); name {
	case "cmdline":
		hpprof.Cmdline(c.Writer, c.Request)
	case "profile":
		hpprof.Profile(c.Writer, c.Request)
	case "symbol":
		hpprof.Symbol(c.Writer, c.Request)
	case "trace":
		hpprof.Trace(c.Writer, c.Request)
	default:
		hpprof.Handler(name).ServeHTTP(c.Writer, c.Request)
	}
}
