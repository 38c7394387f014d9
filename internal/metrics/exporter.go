// Package metrics exports the latest snapshot and poll health as Prometheus
// metrics. The exporter is a pull-time collector over the published
// snapshot, so scrapes never touch the appliance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"solarwatt-bridge/internal/poller"
)

// Source is the slice of the poller the exporter reads from.
type Source interface {
	Latest() *poller.Snapshot
	Status() poller.Status
}

// Exporter implements prometheus.Collector over a poller.
type Exporter struct {
	source Source

	itemValue     *prometheus.Desc
	itemTimestamp *prometheus.Desc
	pollSuccess   *prometheus.Desc
	lastSuccess   *prometheus.Desc
	pollDuration  *prometheus.Desc
	itemCount     *prometheus.Desc
	snapshotStale *prometheus.Desc
}

// NewExporter creates a collector over the given source.
func NewExporter(source Source) *Exporter {
	return &Exporter{
		source: source,
		itemValue: prometheus.NewDesc(
			"solarwatt_item_value",
			"Current numeric value of a normalized item.",
			[]string{"item", "unit", "kind"}, nil,
		),
		itemTimestamp: prometheus.NewDesc(
			"solarwatt_item_timestamp_seconds",
			"Appliance-reported timestamp of an item, as a unix time.",
			[]string{"item"}, nil,
		),
		pollSuccess: prometheus.NewDesc(
			"solarwatt_poll_success",
			"Whether the most recent poll succeeded (1) or failed (0).",
			nil, nil,
		),
		lastSuccess: prometheus.NewDesc(
			"solarwatt_poll_last_success_timestamp_seconds",
			"Unix time of the last successful poll.",
			nil, nil,
		),
		pollDuration: prometheus.NewDesc(
			"solarwatt_poll_duration_seconds",
			"Duration of the most recent poll attempt.",
			nil, nil,
		),
		itemCount: prometheus.NewDesc(
			"solarwatt_items",
			"Number of items in the published snapshot.",
			nil, nil,
		),
		snapshotStale: prometheus.NewDesc(
			"solarwatt_snapshot_stale",
			"Whether the published snapshot is restored cache data (1) rather than a live poll (0).",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.itemValue
	ch <- e.itemTimestamp
	ch <- e.pollSuccess
	ch <- e.lastSuccess
	ch <- e.pollDuration
	ch <- e.itemCount
	ch <- e.snapshotStale
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	st := e.source.Status()

	success := 1.0
	if st.LastError != "" || st.LastSuccess.IsZero() {
		success = 0
	}
	ch <- prometheus.MustNewConstMetric(e.pollSuccess, prometheus.GaugeValue, success)
	ch <- prometheus.MustNewConstMetric(e.pollDuration, prometheus.GaugeValue, st.LastDuration.Seconds())
	if !st.LastSuccess.IsZero() {
		ch <- prometheus.MustNewConstMetric(e.lastSuccess, prometheus.GaugeValue, float64(st.LastSuccess.Unix()))
	}

	snap := e.source.Latest()
	if snap == nil {
		return
	}

	stale := 0.0
	if snap.Stale {
		stale = 1
	}
	ch <- prometheus.MustNewConstMetric(e.snapshotStale, prometheus.GaugeValue, stale)
	ch <- prometheus.MustNewConstMetric(e.itemCount, prometheus.GaugeValue, float64(len(snap.Items)))

	for _, it := range snap.Items {
		v, ok := it.Parsed.Numeric()
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(
			e.itemValue, prometheus.GaugeValue, v,
			it.Name, it.Parsed.Unit, string(it.Meta.Kind),
		)
		if it.Parsed.TimestampMillis != nil {
			ch <- prometheus.MustNewConstMetric(
				e.itemTimestamp, prometheus.GaugeValue,
				float64(*it.Parsed.TimestampMillis)/1000.0,
				it.Name,
			)
		}
	}
}
