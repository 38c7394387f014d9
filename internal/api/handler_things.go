package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type thingResponse struct {
	UID          string            `json:"uid"`
	Label        string            `json:"label,omitempty"`
	TypeUID      string            `json:"typeUid,omitempty"`
	BridgeUID    string            `json:"bridgeUid,omitempty"`
	Status       string            `json:"status,omitempty"`
	StatusDetail string            `json:"statusDetail,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
	ChannelCount int               `json:"channelCount"`
}

type thingListResponse struct {
	Things    []thingResponse `json:"things"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// GetThings handles GET /api/things.
func (h *Handler) GetThings(c *gin.Context) {
	things, fetchedAt := h.core.Things()

	resp := thingListResponse{Things: make([]thingResponse, 0, len(things)), FetchedAt: fetchedAt}
	for _, t := range things {
		resp.Things = append(resp.Things, thingResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}
