package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/luispater/idleClickerBot/internal/runner"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

// APIHandlers contains the handlers for API endpoints
type APIHandlers struct {
	scheduler *runner.Scheduler
	session   string
	startedAt time.Time
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(scheduler *runner.Scheduler, session string, startedAt time.Time) *APIHandlers {
	return &APIHandlers{
		scheduler: scheduler,
		session:   session,
		startedAt: startedAt,
	}
}

// Status reports the session and per-runner tick counters.
func (h *APIHandlers) Status(c *gin.Context) {
	body := `{"runners":[]}`
	body, _ = sjson.Set(body, "session", h.session)
	body, _ = sjson.Set(body, "started_at", h.startedAt.UTC().Format(time.RFC3339))
	body, _ = sjson.Set(body, "uptime", time.Since(h.startedAt).Round(time.Second).String())

	for _, stats := range h.scheduler.Stats() {
		runnerJSON := `{}`
		runnerJSON, _ = sjson.Set(runnerJSON, "name", stats.Name)
		runnerJSON, _ = sjson.Set(runnerJSON, "interval", stats.Interval.String())
		runnerJSON, _ = sjson.Set(runnerJSON, "ticks", stats.Ticks)
		runnerJSON, _ = sjson.Set(runnerJSON, "performed", stats.Performed)
		runnerJSON, _ = sjson.Set(runnerJSON, "skipped", stats.Skipped)
		runnerJSON, _ = sjson.Set(runnerJSON, "failed", stats.Failed)
		runnerJSON, _ = sjson.Set(runnerJSON, "cancelled", stats.Cancelled)
		if stats.LastError != "" {
			runnerJSON, _ = sjson.Set(runnerJSON, "last_error", stats.LastError)
		}
		if !stats.LastTick.IsZero() {
			runnerJSON, _ = sjson.Set(runnerJSON, "last_tick", stats.LastTick.UTC().Format(time.RFC3339Nano))
		}

		var err error
		body, err = sjson.SetRaw(body, "runners.-1", runnerJSON)
		if err != nil {
			log.Debugf("Error building status for %s: %v", stats.Name, err)
		}
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(body))
}

// CancelRunner stops a single runner for the rest of the session.
func (h *APIHandlers) CancelRunner(c *gin.Context) {
	name := c.Param("name")
	if !h.scheduler.Cancel(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "runner not found", "name": name})
		return
	}
	log.WithField("component", "api").Infof("Runner %s cancelled via API", name)
	c.JSON(http.StatusOK, gin.H{"name": name, "cancelled": true})
}
