package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status string       `json:"status"`
	Deps   []Dependency `json:"deps"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db *gorm.DB
}

type HealthParams struct {
	fx.In
	DB *gorm.DB `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{db: p.DB}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *health) Readiness(c *gin.Context) {
	out := Health{Status: "ok"}

	if h.db != nil {
		dep := Dependency{Name: "database", Status: "ok"}
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			dep.Status = "down"
			dep.Message = err.Error()
			out.Status = "degraded"
		}
		out.Deps = append(out.Deps, dep)
	}

	status := http.StatusOK
	if out.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, out)
}
