package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/favsync/internal/database"
	"github.com/mrlokans/favsync/internal/distribution"
)

func setupHealthTestDB(t *testing.T) *database.Database {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func getHealth(t *testing.T, controller *HealthController) (int, HealthResponse) {
	t.Helper()
	router := gin.New()
	router.GET("/health", controller.Status)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w.Code, response
}

func TestHealthController_Status(t *testing.T) {
	t.Run("returns healthy when database and engine are up", func(t *testing.T) {
		db := setupHealthTestDB(t)
		hub, _ := newTestHub(t)

		code, response := getHealth(t, NewHealthController(db, hub, "1.0.0"))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "1.0.0", response.Version)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.Equal(t, "local_only", response.Checks["favorites"])
		assert.Contains(t, response.Time, "T")
	})

	t.Run("reports unconfigured dependencies", func(t *testing.T) {
		gin.SetMode(gin.TestMode)

		code, response := getHealth(t, NewHealthController(nil, nil, "1.0.0"))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "not configured", response.Checks["database"])
		assert.Equal(t, "not configured", response.Checks["favorites"])
	})

	t.Run("returns unhealthy when database connection is closed", func(t *testing.T) {
		db := setupHealthTestDB(t)
		db.Close()

		code, response := getHealth(t, NewHealthController(db, nil, "1.0.0"))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Contains(t, response.Checks["database"], "error")
	})

	t.Run("returns unhealthy when the hub is unbound", func(t *testing.T) {
		gin.SetMode(gin.TestMode)

		code, response := getHealth(t, NewHealthController(nil, distribution.NewHub(), ""))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Contains(t, response.Checks["favorites"], "not bound")
		assert.Empty(t, response.Version)
	})
}

func TestHealthController_StatusDuringRebind(t *testing.T) {
	hub, engine := newTestHub(t)
	controller := NewHealthController(nil, hub, "")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				hub.Bind(engine)
				return
			default:
				hub.Unbind()
				hub.Bind(engine)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		code, _ := getHealth(t, controller)
		require.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, code)
	}
	close(stop)
	wg.Wait()
}

func TestHealthResponse_OmitsEmptyVersion(t *testing.T) {
	response := HealthResponse{
		Status: "healthy",
		Time:   "2024-01-01T12:00:00Z",
		Checks: map[string]string{},
	}

	jsonBytes, err := json.Marshal(response)
	require.NoError(t, err)

	assert.NotContains(t, string(jsonBytes), "version")
}
