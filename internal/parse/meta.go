package parse

import "strings"

// QuantityKind is the semantic category of a reading, independent of its
// unit string.
type QuantityKind string

const (
	KindPower        QuantityKind = "power"
	KindEnergy       QuantityKind = "energy"
	KindVoltage      QuantityKind = "voltage"
	KindCurrent      QuantityKind = "current"
	KindFrequency    QuantityKind = "frequency"
	KindTemperature  QuantityKind = "temperature"
	KindBatteryLevel QuantityKind = "battery_level"
)

// Aggregation says whether a reading is instantaneous or a monotonically
// increasing running total.
type Aggregation string

const (
	AggregationInstant Aggregation = "instant"
	AggregationTotal   Aggregation = "total_increasing"
)

// Meta is advisory presentation metadata derived for one reading. Zero
// values mean "unknown"; nothing downstream depends on it for correctness.
type Meta struct {
	Kind          QuantityKind
	Aggregation   Aggregation
	PreferredUnit string
	Icon          string
}

// batteryKeywords select the battery-level kind over a generic percentage.
var batteryKeywords = []string{"soc", "stateofcharge", "battery", "akku"}

// typeHintFamilies maps structured type-hint prefixes to their
// classification and the unit to suggest when the parsed value carried none.
var typeHintFamilies = []struct {
	prefix      string
	kind        QuantityKind
	aggregation Aggregation
	defaultUnit string
}{
	{"Number:Power", KindPower, AggregationInstant, "W"},
	{"Number:Energy", KindEnergy, AggregationTotal, "kWh"},
	{"Number:Temperature", KindTemperature, AggregationInstant, "°C"},
	{"Number:Frequency", KindFrequency, AggregationInstant, "Hz"},
	{"Number:ElectricCurrent", KindCurrent, AggregationInstant, "A"},
	{"Number:ElectricPotential", KindVoltage, AggregationInstant, "V"},
}

// Infer derives semantic metadata for one reading. The unit-based baseline
// is computed first; a recognizable structured type hint overrides it.
// Pure and total: unknown inputs yield an empty Meta.
func Infer(typeHint string, st State, itemName string) Meta {
	nameLower := strings.ToLower(itemName)

	meta := classifyFromUnit(st.Unit, nameLower)
	if hinted, ok := classifyFromTypeHint(typeHint, st.Unit); ok {
		hinted.Icon = meta.Icon
		if st.Unit != "" {
			hinted.PreferredUnit = st.Unit
		}
		// Dimensionless hints keep the unit-derived kind refinement.
		if hinted.Kind == "" {
			hinted.Kind = meta.Kind
		}
		meta = hinted
	}

	if meta.Icon == "" {
		meta.Icon = iconForName(nameLower)
	}
	return meta
}

func classifyFromUnit(unit, nameLower string) Meta {
	meta := Meta{PreferredUnit: unit}
	switch unit {
	case "W", "kW":
		meta.Kind = KindPower
		meta.Aggregation = AggregationInstant
	case "Wh", "kWh":
		meta.Kind = KindEnergy
		meta.Aggregation = AggregationTotal
	case "V":
		meta.Kind = KindVoltage
		meta.Aggregation = AggregationInstant
	case "A":
		meta.Kind = KindCurrent
		meta.Aggregation = AggregationInstant
	case "Hz":
		meta.Kind = KindFrequency
		meta.Aggregation = AggregationInstant
	case "°C":
		meta.Kind = KindTemperature
		meta.Aggregation = AggregationInstant
	case "%":
		meta.Aggregation = AggregationInstant
		for _, kw := range batteryKeywords {
			if strings.Contains(nameLower, kw) {
				meta.Kind = KindBatteryLevel
				break
			}
		}
	}
	return meta
}

func classifyFromTypeHint(typeHint, unit string) (Meta, bool) {
	if typeHint == "" {
		return Meta{}, false
	}
	for _, family := range typeHintFamilies {
		if strings.HasPrefix(typeHint, family.prefix) {
			meta := Meta{
				Kind:          family.kind,
				Aggregation:   family.aggregation,
				PreferredUnit: family.defaultUnit,
			}
			return meta, true
		}
	}
	if strings.HasPrefix(typeHint, "Number:Dimensionless") {
		meta := Meta{Aggregation: AggregationInstant, PreferredUnit: unit}
		if unit == "%" {
			meta.Kind = KindBatteryLevel
		}
		return meta, true
	}
	return Meta{}, false
}

// iconForName assigns a display icon from solar/grid/battery/load
// vocabulary in the item name.
func iconForName(nameLower string) string {
	switch {
	case containsAny(nameLower, "pv", "solar", "generator"):
		return "mdi:solar-power"
	case containsAny(nameLower, "grid", "netz"):
		return "mdi:transmission-tower"
	case containsAny(nameLower, "battery", "akku"):
		return "mdi:battery"
	case containsAny(nameLower, "house", "home", "load", "verbrauch"):
		return "mdi:home-lightning-bolt"
	}
	return ""
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
