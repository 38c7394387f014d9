// Package api exposes the bridge's read-only HTTP surface.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"solarwatt-bridge/internal/manager"
	"solarwatt-bridge/internal/poller"
)

// Core is the slice of the poller the handlers depend on.
type Core interface {
	Latest() *poller.Snapshot
	Things() ([]manager.Thing, time.Time)
	Status() poller.Status
	FetchItem(ctx context.Context, rawName string) (poller.Item, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	core       Core
	namePrefix string
}

// NewHandler creates a new API handler. namePrefix, when non-empty, is
// prepended to every published item name.
func NewHandler(core Core, namePrefix string) *Handler {
	return &Handler{core: core, namePrefix: namePrefix}
}

func (h *Handler) publishedName(name string) string {
	if h.namePrefix == "" {
		return name
	}
	return h.namePrefix + "_" + name
}

// abortUpstream maps an appliance error to an HTTP status.
func abortUpstream(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if manager.ErrKind(err) == manager.KindConnection {
		status = http.StatusGatewayTimeout
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": err.Error(),
		"kind":  string(manager.ErrKind(err)),
	})
}
