package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"solarwatt-bridge/internal/poller"
)

// itemResponse is the published form of one normalized reading.
type itemResponse struct {
	Name             string     `json:"name"`
	DisplayName      string     `json:"displayName"`
	Value            any        `json:"value"`
	Unit             string     `json:"unit,omitempty"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
	Kind             string     `json:"kind,omitempty"`
	Aggregation      string     `json:"aggregation"`
	Icon             string     `json:"icon,omitempty"`
	EnabledByDefault bool       `json:"enabledByDefault"`
	Switch           bool       `json:"switch"`
	Type             string     `json:"type,omitempty"`
	RawState         *string    `json:"rawState"`
}

type itemListResponse struct {
	Items     []itemResponse `json:"items"`
	FetchedAt time.Time      `json:"fetchedAt"`
	Stale     bool           `json:"stale"`
}

func (h *Handler) itemResponse(it poller.Item) itemResponse {
	resp := itemResponse{
		Name:             h.publishedName(it.Name),
		DisplayName:      it.DisplayName,
		Value:            it.Parsed.Value,
		Unit:             it.Parsed.Unit,
		Kind:             string(it.Meta.Kind),
		Aggregation:      string(it.Meta.Aggregation),
		Icon:             it.Meta.Icon,
		EnabledByDefault: it.EnabledByDefault,
		Switch:           it.IsSwitch(),
		Type:             it.Raw.Type,
		RawState:         it.Raw.State,
	}
	if it.Parsed.TimestampMillis != nil {
		ts := time.UnixMilli(*it.Parsed.TimestampMillis).UTC()
		resp.Timestamp = &ts
	}
	return resp
}

// GetItems handles GET /api/items.
func (h *Handler) GetItems(c *gin.Context) {
	snap := h.core.Latest()
	if snap == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "no data yet"})
		return
	}

	items := make([]itemResponse, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, h.itemResponse(it))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	c.JSON(http.StatusOK, itemListResponse{Items: items, FetchedAt: snap.FetchedAt, Stale: snap.Stale})
}

// GetItem handles GET /api/items/:name. A refresh=1 query forces a live
// read from the appliance instead of serving the snapshot.
func (h *Handler) GetItem(c *gin.Context) {
	name := c.Param("name")

	snap := h.core.Latest()
	if snap == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "no data yet"})
		return
	}

	it, ok := snap.Items[h.trimPrefix(name)]
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown item"})
		return
	}

	if c.Query("refresh") != "" {
		fresh, err := h.core.FetchItem(c.Request.Context(), it.Raw.Name)
		if err != nil {
			abortUpstream(c, err)
			return
		}
		it = fresh
	}

	c.JSON(http.StatusOK, h.itemResponse(it))
}

func (h *Handler) trimPrefix(name string) string {
	if h.namePrefix == "" {
		return name
	}
	prefixed := h.namePrefix + "_"
	if len(name) > len(prefixed) && name[:len(prefixed)] == prefixed {
		return name[len(prefixed):]
	}
	return name
}
