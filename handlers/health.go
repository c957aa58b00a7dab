package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports liveness
func HealthHandler(c echo.Context) error {
	body := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if syncer := getSynchronizer(c); syncer != nil {
		body["store"] = syncer.Store().Name()
	}
	return c.JSON(http.StatusOK, body)
}
