package httpapi

import (
	"net/http"
	"time"

	"makersclub-insights/pkg/config"
	"makersclub-insights/pkg/errutil"
	"makersclub-insights/pkg/health"
	"makersclub-insights/pkg/middleware"
	"makersclub-insights/services/digest"
	"makersclub-insights/services/eventstore"
	"makersclub-insights/services/insights"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewHandler, ProvideRouter),
)

type Handler struct {
	store    *eventstore.Service
	insights *insights.Service
	digest   *digest.Service
}

type HandlerParams struct {
	fx.In
	Store    *eventstore.Service
	Insights *insights.Service
	Digest   *digest.Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		store:    p.Store,
		insights: p.Insights,
		digest:   p.Digest,
	}
}

// ProvideRouter builds the gin engine consumed by the HTTP server. The
// aggregation core stays transport-agnostic; this layer adapts HTTP to it
// and supplies the report timestamp.
func ProvideRouter(cfg *config.Config, h *Handler, healthSvc health.HealthService) http.Handler {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/healthz", healthSvc.Liveness)
	r.GET("/readyz", healthSvc.Readiness)

	api := r.Group("/api")
	api.GET("/metrics", h.Metrics)
	api.GET("/charts", h.Charts)
	api.GET("/digest", h.Digest)
	api.POST("/demo-data", h.DemoData)
	api.POST("/upload-csv", h.UploadCSV)

	return r
}

func (h *Handler) Metrics(c *gin.Context) {
	snap, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		c.Error(errutil.Internal("failed to read store", errutil.WithErr(err)))
		return
	}

	c.JSON(http.StatusOK, h.insights.Metrics(snap, time.Now()))
}

func (h *Handler) Charts(c *gin.Context) {
	snap, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		c.Error(errutil.Internal("failed to read store", errutil.WithErr(err)))
		return
	}

	c.JSON(http.StatusOK, h.insights.ChartData(snap, time.Now()))
}

func (h *Handler) Digest(c *gin.Context) {
	snap, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		c.Error(errutil.Internal("failed to read store", errutil.WithErr(err)))
		return
	}

	now := time.Now()
	metrics := h.insights.Metrics(snap, now)
	charts := h.insights.ChartData(snap, now)

	c.JSON(http.StatusOK, gin.H{
		"digest": h.digest.Digest(c.Request.Context(), metrics, charts),
	})
}

func (h *Handler) DemoData(c *gin.Context) {
	summary, err := h.store.Seed(c.Request.Context(), time.Now())
	if err != nil {
		c.Error(errutil.Internal("failed to generate demo data", errutil.WithErr(err)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Demo data generated",
		"summary": summary,
	})
}

func (h *Handler) UploadCSV(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.Error(errutil.BadRequest("csv file is required", errutil.WithErr(err)))
		return
	}

	f, err := file.Open()
	if err != nil {
		c.Error(errutil.BadRequest("failed to open uploaded file", errutil.WithErr(err)))
		return
	}
	defer f.Close()

	accepted, err := h.store.LoadCSV(c.Request.Context(), f)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"events_loaded": accepted,
	})
}
