package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/favsync/internal/database"
	"github.com/mrlokans/favsync/internal/favorites"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// EngineStatus is the part of the hub the health check reads. TryState
// reports ok=false instead of panicking when no engine is bound.
type EngineStatus interface {
	TryState() (*favorites.State, bool)
}

type HealthController struct {
	db      *database.Database
	engine  EngineStatus
	version string
}

func NewHealthController(db *database.Database, engine EngineStatus, version string) *HealthController {
	return &HealthController{
		db:      db,
		engine:  engine,
		version: version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Check database connectivity
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	// LocalOnly still serves favorites, so only an unbound hub is unhealthy.
	if h.engine == nil {
		checks["favorites"] = "not configured"
	} else if state, ok := h.engine.TryState(); !ok {
		checks["favorites"] = "error: engine not bound"
		status = "unhealthy"
	} else {
		checks["favorites"] = state.Status.String()
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
