package manager

import "encoding/json"

// Item is the appliance's literal record for one telemetry/control point.
// Immutable once fetched; a fresh fetch produces a fresh set.
type Item struct {
	Name       string   `json:"name"`
	State      *string  `json:"state"`
	Type       string   `json:"type"`
	Editable   bool     `json:"editable"`
	Label      string   `json:"label,omitempty"`
	Category   string   `json:"category,omitempty"`
	GroupNames []string `json:"groupNames,omitempty"`
}

// Thing is one managed sub-device in the appliance's inventory. Field casing
// differs across firmware versions (UID vs uid), so decoding goes through
// rawThing.
type Thing struct {
	UID          string
	Label        string
	TypeUID      string
	BridgeUID    string
	Status       string
	StatusDetail string
	Properties   map[string]string
	ChannelCount int
}

type rawThing struct {
	UID          string            `json:"UID"`
	UIDLower     string            `json:"uid"`
	Label        string            `json:"label"`
	TypeUID      string            `json:"thingTypeUID"`
	TypeUIDAlt   string            `json:"thingTypeUid"`
	BridgeUID    string            `json:"bridgeUID"`
	BridgeUIDAlt string            `json:"bridgeUid"`
	StatusInfo   rawStatusInfo     `json:"statusInfo"`
	Properties   map[string]string `json:"properties"`
	Channels     []json.RawMessage `json:"channels"`
}

type rawStatusInfo struct {
	Status       string `json:"status"`
	StatusDetail string `json:"statusDetail"`
}

func (r rawThing) thing() Thing {
	return Thing{
		UID:          firstNonEmpty(r.UID, r.UIDLower),
		Label:        r.Label,
		TypeUID:      firstNonEmpty(r.TypeUID, r.TypeUIDAlt),
		BridgeUID:    firstNonEmpty(r.BridgeUID, r.BridgeUIDAlt),
		Status:       r.StatusInfo.Status,
		StatusDetail: r.StatusInfo.StatusDetail,
		Properties:   r.Properties,
		ChannelCount: len(r.Channels),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
