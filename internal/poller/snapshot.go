package poller

import (
	"strings"
	"time"

	"solarwatt-bridge/internal/manager"
	"solarwatt-bridge/internal/naming"
	"solarwatt-bridge/internal/parse"
)

// Item is one normalized reading. Never mutated after construction; a fresh
// poll produces a fresh set.
type Item struct {
	// Name is the normalized, installation-independent key.
	Name             string
	Raw              manager.Item
	Parsed           parse.State
	Meta             parse.Meta
	DisplayName      string
	EnabledByDefault bool
}

// IsSwitch reports whether the item is a control point rather than a
// reading; presentation layers usually skip these.
func (it Item) IsSwitch() bool {
	return strings.HasPrefix(it.Raw.Type, "Switch")
}

// Snapshot is one complete, internally consistent set of normalized items
// from a single poll. Consumers must read a single snapshot and never mix
// items from two polls.
type Snapshot struct {
	Items     map[string]Item
	FetchedAt time.Time
	// Stale marks a snapshot restored from the warm-start cache; it is
	// cleared by the first successful poll.
	Stale bool
}

func normalizeItem(raw manager.Item) Item {
	name := naming.Normalize(raw.Name)
	parsed := parse.ParseState(raw.State)
	return Item{
		Name:             name,
		Raw:              raw,
		Parsed:           parsed,
		Meta:             parse.Infer(raw.Type, parsed, raw.Name),
		DisplayName:      naming.FormatDisplay(name),
		EnabledByDefault: naming.EnabledByDefault(raw.Name),
	}
}

func buildSnapshot(rawItems []manager.Item, fetchedAt time.Time, stale bool) *Snapshot {
	items := make(map[string]Item, len(rawItems))
	for _, raw := range rawItems {
		item := normalizeItem(raw)
		items[item.Name] = item
	}
	return &Snapshot{Items: items, FetchedAt: fetchedAt, Stale: stale}
}
