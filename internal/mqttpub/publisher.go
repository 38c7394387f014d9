// Package mqttpub mirrors every published snapshot to an MQTT broker as
// retained per-item messages, so dashboards and home-automation consumers
// get the current state immediately on subscribe.
package mqttpub

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"solarwatt-bridge/config"
	"solarwatt-bridge/internal/poller"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher pushes snapshots to a broker. Safe for the single poller
// goroutine that owns the snapshot callback; not otherwise synchronized.
type Publisher struct {
	client mqtt.Client
	prefix string
	log    zerolog.Logger
}

// payload is the retained message body for one item.
type payload struct {
	Value       any        `json:"value"`
	Unit        string     `json:"unit,omitempty"`
	Kind        string     `json:"kind,omitempty"`
	Aggregation string     `json:"aggregation"`
	DisplayName string     `json:"displayName"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	FetchedAt   time.Time  `json:"fetchedAt"`
}

// New connects to the broker and marks the bridge online. The will message
// flips the availability topic to offline if the connection drops.
func New(cfg config.MQTTConfig, log zerolog.Logger) (*Publisher, error) {
	p := &Publisher{prefix: cfg.TopicPrefix, log: log.With().Str("component", "mqtt").Logger()}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetWill(p.availabilityTopic(), "offline", 1, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(c mqtt.Client) {
		c.Publish(p.availabilityTopic(), 1, true, "online")
		p.log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
	}

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return p, nil
}

func (p *Publisher) availabilityTopic() string {
	return p.prefix + "/availability"
}

func (p *Publisher) itemTopic(name string) string {
	return p.prefix + "/items/" + name
}

func buildPayload(it poller.Item, fetchedAt time.Time) payload {
	body := payload{
		Value:       it.Parsed.Value,
		Unit:        it.Parsed.Unit,
		Kind:        string(it.Meta.Kind),
		Aggregation: string(it.Meta.Aggregation),
		DisplayName: it.DisplayName,
		FetchedAt:   fetchedAt,
	}
	if it.Parsed.TimestampMillis != nil {
		ts := time.UnixMilli(*it.Parsed.TimestampMillis).UTC()
		body.Timestamp = &ts
	}
	return body
}

// PublishSnapshot publishes every item of a snapshot as a retained message.
// Individual publish failures are logged and skipped.
func (p *Publisher) PublishSnapshot(snap *poller.Snapshot) {
	if snap == nil || snap.Stale {
		return
	}
	for _, it := range snap.Items {
		encoded, err := json.Marshal(buildPayload(it, snap.FetchedAt))
		if err != nil {
			p.log.Warn().Err(err).Str("item", it.Name).Msg("Encoding item for MQTT failed")
			continue
		}
		token := p.client.Publish(p.itemTopic(it.Name), 0, true, encoded)
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			p.log.Warn().Err(token.Error()).Str("item", it.Name).Msg("MQTT publish failed")
		}
	}
}

// Close marks the bridge offline and disconnects.
func (p *Publisher) Close() {
	token := p.client.Publish(p.availabilityTopic(), 1, true, "offline")
	token.WaitTimeout(publishTimeout)
	p.client.Disconnect(250)
}
