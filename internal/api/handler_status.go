package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type statusResponse struct {
	LastAttempt     *time.Time `json:"lastAttempt,omitempty"`
	LastSuccess     *time.Time `json:"lastSuccess,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
	LastErrorKind   string     `json:"lastErrorKind,omitempty"`
	LastDurationMs  int64      `json:"lastDurationMs"`
	ItemCount       int        `json:"itemCount"`
	Stale           bool       `json:"stale"`
	ThingsFetchedAt *time.Time `json:"thingsFetchedAt,omitempty"`
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	st := h.core.Status()

	resp := statusResponse{
		LastError:      st.LastError,
		LastErrorKind:  string(st.LastErrorKind),
		LastDurationMs: st.LastDuration.Milliseconds(),
		ItemCount:      st.ItemCount,
		Stale:          st.Stale,
	}
	if !st.LastAttempt.IsZero() {
		resp.LastAttempt = &st.LastAttempt
	}
	if !st.LastSuccess.IsZero() {
		resp.LastSuccess = &st.LastSuccess
	}
	if !st.ThingsFetchedAt.IsZero() {
		resp.ThingsFetchedAt = &st.ThingsFetchedAt
	}
	c.JSON(http.StatusOK, resp)
}

// Healthz handles GET /healthz. Liveness only; poll failures are reported
// through /api/status, not here.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
