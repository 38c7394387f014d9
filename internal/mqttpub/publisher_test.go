package mqttpub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarwatt-bridge/internal/parse"
	"solarwatt-bridge/internal/poller"
)

func TestTopics(t *testing.T) {
	p := &Publisher{prefix: "solarwatt"}
	assert.Equal(t, "solarwatt/availability", p.availabilityTopic())
	assert.Equal(t, "solarwatt/items/kiwigrid_power_in", p.itemTopic("kiwigrid_power_in"))
}

func TestBuildPayload(t *testing.T) {
	ts := int64(1700000000000)
	it := poller.Item{
		Name: "kiwigrid_power_in",
		Parsed: parse.State{
			Value:           int64(1500),
			Unit:            "W",
			TimestampMillis: &ts,
		},
		Meta:        parse.Meta{Kind: parse.KindPower, Aggregation: parse.AggregationInstant},
		DisplayName: "Kiwigrid Power In",
	}
	fetchedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	encoded, err := json.Marshal(buildPayload(it, fetchedAt))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(encoded, &got))
	assert.Equal(t, float64(1500), got["value"])
	assert.Equal(t, "W", got["unit"])
	assert.Equal(t, "power", got["kind"])
	assert.Equal(t, "instant", got["aggregation"])
	assert.Equal(t, "Kiwigrid Power In", got["displayName"])
	assert.Equal(t, "2023-11-14T22:13:20Z", got["timestamp"])
	assert.Equal(t, "2026-08-01T12:00:00Z", got["fetchedAt"])
}

func TestBuildPayloadWithoutTimestamp(t *testing.T) {
	it := poller.Item{
		Name:   "battery_mode",
		Parsed: parse.State{Value: "SelfUse"},
	}
	encoded, err := json.Marshal(buildPayload(it, time.Now().UTC()))
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "timestamp")
}
