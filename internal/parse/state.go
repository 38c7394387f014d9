package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// State is one parsed item state. Value holds nil, bool, int64, float64 or
// string; Unit is set only when Value is numeric; TimestampMillis is set only
// when the raw string used the "timestamp|value" encoding.
type State struct {
	Value           any
	Unit            string
	TimestampMillis *int64
}

// Numeric reports whether the parsed value is a number and returns it as a
// float64 for metric export.
func (s State) Numeric() (float64, bool) {
	switch v := s.Value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// numRe matches an optionally signed decimal or scientific-notation number
// followed by optional unit text.
var numRe = regexp.MustCompile(`^\s*([+-]?(?:\d+(?:\.\d+)?|\.\d+)(?:[eE][+-]?\d+)?)\s*([^\d\s].*)?\s*$`)

var digitsRe = regexp.MustCompile(`^\d+$`)

// ParseState turns one raw state string into a typed State. It is total: any
// input yields a State, never an error. A nil pointer and the literal "NULL"
// both map to a nil value.
func ParseState(raw *string) State {
	if raw == nil {
		return State{}
	}
	return parse(strings.TrimSpace(*raw))
}

func parse(s string) State {
	switch s {
	case "NULL":
		return State{}
	case "ON":
		return State{Value: true}
	case "OFF":
		return State{Value: false}
	}

	// "timestamp|value unit": the left side, if entirely digits, is an epoch
	// millisecond timestamp; the right side is parsed as a plain state.
	if idx := strings.Index(s, "|"); idx >= 0 {
		left := strings.TrimSpace(s[:idx])
		right := strings.TrimSpace(s[idx+1:])
		st := parse(right)
		if digitsRe.MatchString(left) {
			if ts, err := strconv.ParseInt(left, 10, 64); err == nil {
				st.TimestampMillis = &ts
			}
		}
		return st
	}

	if m := numRe.FindStringSubmatch(s); m != nil {
		if val, err := strconv.ParseFloat(m[1], 64); err == nil {
			unit := strings.TrimSpace(m[2])
			val, unit = normalizeUnit(val, unit)
			return State{Value: narrow(val), Unit: unit}
		}
	}

	// Fallback: keep the literal string. Not an error; the appliance reports
	// enum-like states (e.g. battery modes) as bare words.
	return State{Value: s}
}

// normalizeUnit converts awkward source units to the ones downstream
// consumers accumulate and graph, and rounds per unit.
func normalizeUnit(val float64, unit string) (float64, string) {
	if unit == "" {
		return val, ""
	}
	// The degree sign sometimes arrives double-encoded from the appliance.
	unit = strings.ReplaceAll(unit, "Â°", "°")

	if unit == "Ws" {
		val /= 3600.0
		unit = "Wh"
	}
	if unit == "Wh" {
		val /= 1000.0
		unit = "kWh"
	}

	switch unit {
	case "kWh", "kW":
		val = roundTo(val, 3)
	case "W", "V", "A", "Hz", "%":
		val = roundTo(val, 2)
	case "°C", "C":
		unit = "°C"
		val = roundTo(val, 2)
	}
	return val, unit
}

func roundTo(val float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(val*shift) / shift
}

// narrow collapses integral floats to int64 so "1500 W" reads as 1500, not
// 1500.0, in JSON and MQTT payloads.
func narrow(val float64) any {
	if val == math.Trunc(val) && !math.IsInf(val, 0) && math.Abs(val) < 1e15 {
		return int64(val)
	}
	return val
}
