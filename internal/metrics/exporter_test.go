package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarwatt-bridge/internal/manager"
	"solarwatt-bridge/internal/parse"
	"solarwatt-bridge/internal/poller"
)

func strPtr(s string) *string { return &s }

type stubSource struct {
	snapshot *poller.Snapshot
	status   poller.Status
}

func (s *stubSource) Latest() *poller.Snapshot { return s.snapshot }
func (s *stubSource) Status() poller.Status    { return s.status }

func testSource() *stubSource {
	return &stubSource{
		snapshot: &poller.Snapshot{
			Items: map[string]poller.Item{
				"kiwigrid_power_in": {
					Name:   "kiwigrid_power_in",
					Raw:    manager.Item{State: strPtr("1500 W")},
					Parsed: parse.State{Value: int64(1500), Unit: "W"},
					Meta:   parse.Meta{Kind: parse.KindPower},
				},
				"battery_mode": {
					Name:   "battery_mode",
					Parsed: parse.State{Value: "SelfUse"},
				},
			},
			FetchedAt: time.Unix(1700000000, 0),
		},
		status: poller.Status{
			LastSuccess:  time.Unix(1700000000, 0),
			LastDuration: 250 * time.Millisecond,
		},
	}
}

func TestCollectItemValues(t *testing.T) {
	exporter := NewExporter(testSource())

	expected := `
# HELP solarwatt_item_value Current numeric value of a normalized item.
# TYPE solarwatt_item_value gauge
solarwatt_item_value{item="kiwigrid_power_in",kind="power",unit="W"} 1500
`
	require.NoError(t, testutil.CollectAndCompare(exporter, strings.NewReader(expected), "solarwatt_item_value"))
}

func TestCollectPollHealth(t *testing.T) {
	exporter := NewExporter(testSource())

	expected := `
# HELP solarwatt_poll_success Whether the most recent poll succeeded (1) or failed (0).
# TYPE solarwatt_poll_success gauge
solarwatt_poll_success 1
# HELP solarwatt_poll_duration_seconds Duration of the most recent poll attempt.
# TYPE solarwatt_poll_duration_seconds gauge
solarwatt_poll_duration_seconds 0.25
# HELP solarwatt_poll_last_success_timestamp_seconds Unix time of the last successful poll.
# TYPE solarwatt_poll_last_success_timestamp_seconds gauge
solarwatt_poll_last_success_timestamp_seconds 1.7e+09
# HELP solarwatt_items Number of items in the published snapshot.
# TYPE solarwatt_items gauge
solarwatt_items 2
# HELP solarwatt_snapshot_stale Whether the published snapshot is restored cache data (1) rather than a live poll (0).
# TYPE solarwatt_snapshot_stale gauge
solarwatt_snapshot_stale 0
`
	require.NoError(t, testutil.CollectAndCompare(exporter, strings.NewReader(expected),
		"solarwatt_poll_success",
		"solarwatt_poll_duration_seconds",
		"solarwatt_poll_last_success_timestamp_seconds",
		"solarwatt_items",
		"solarwatt_snapshot_stale",
	))
}

func TestCollectFailedPoll(t *testing.T) {
	src := testSource()
	src.status.LastError = "connection refused"

	exporter := NewExporter(src)
	expected := `
# HELP solarwatt_poll_success Whether the most recent poll succeeded (1) or failed (0).
# TYPE solarwatt_poll_success gauge
solarwatt_poll_success 0
`
	require.NoError(t, testutil.CollectAndCompare(exporter, strings.NewReader(expected), "solarwatt_poll_success"))
}

func TestCollectNoSnapshot(t *testing.T) {
	exporter := NewExporter(&stubSource{})
	assert.Equal(t, 0, testutil.CollectAndCount(exporter, "solarwatt_item_value"))
	assert.Equal(t, 0, testutil.CollectAndCount(exporter, "solarwatt_items"))
}
