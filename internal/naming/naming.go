// Package naming canonicalizes the appliance's installation-specific item
// identifiers into stable keys, formats them for display, and decides which
// readings are visible by default.
package naming

import (
	"regexp"
	"strings"
)

// normalizationRules rewrite verbose vendor/serial segments into short stable
// prefixes. Rules apply in order; later rules still act on already-rewritten
// text. Extend by appending pairs here.
var normalizationRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	// foxesshybrid_battery_<SERIAL>_... -> foxess_...
	{regexp.MustCompile(`^foxesshybrid_battery_[^_]+_`), "foxess_"},

	// kiwigrid_location_standard_<SERIAL>_harmonized_... -> kiwigrid_...
	{regexp.MustCompile(`^kiwigrid_location_standard_[^_]+_harmonized_`), "kiwigrid_"},
}

// CleanItemKey strips the leading '#' the appliance uses to mark metadata
// items.
func CleanItemKey(raw string) string {
	return strings.TrimLeft(raw, "#")
}

// Normalize maps a raw item identifier to its stable key. Idempotent:
// normalizing an already-normalized name is a no-op.
func Normalize(raw string) string {
	name := CleanItemKey(raw)
	for _, rule := range normalizationRules {
		name = rule.pattern.ReplaceAllString(name, rule.replacement)
	}
	return name
}

// acronymCasing fixes tokens that title-casing would mangle. Numeric
// suffixes on a token are preserved (bms1 -> BMS1).
var acronymCasing = map[string]string{
	"soc":    "SOC",
	"pv":     "PV",
	"bms":    "BMS",
	"ac":     "AC",
	"dc":     "DC",
	"ev":     "EV",
	"id":     "ID",
	"foxess": "FoxESS",
}

var trailingDigitsRe = regexp.MustCompile(`\d+$`)

// FormatDisplay renders a normalized name for humans: underscore-delimited
// tokens are title-cased, known acronyms and brand tokens keep their
// canonical casing, and tokens that already contain mixed case pass through
// untouched.
func FormatDisplay(name string) string {
	tokens := strings.Split(name, "_")
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		out = append(out, formatToken(tok))
	}
	return strings.Join(out, " ")
}

func formatToken(tok string) string {
	if tok != strings.ToLower(tok) {
		// Mixed case came from the installer; trust it.
		return tok
	}
	digits := trailingDigitsRe.FindString(tok)
	stem := strings.TrimSuffix(tok, digits)
	if canonical, ok := acronymCasing[stem]; ok {
		return canonical + digits
	}
	return strings.ToUpper(tok[:1]) + tok[1:]
}

// Default-enabled readings, grouped by device family. Serial numbers differ
// between installations, so suffixes are matched behind the family's
// serial-bearing prefix. Everything not listed exists but starts hidden.
var (
	kiwigridPowerSuffixes = []string{
		"power_in",
		"power_out",
		"power_produced",
		"power_released",
		"power_consumed",
		"power_consumed_from_grid",
		"power_consumed_from_storage",
		"power_consumed_from_producers",
		"power_buffered",
		"power_buffered_from_grid",
		"power_buffered_from_producers",
		"power_self_consumed",
		"power_self_supplied",
	}
	kiwigridWorkSuffixes = []string{
		"work_in_total",
		"work_out_total",
		"work_produced_total",
		"work_released_total",
		"work_consumed_total",
		"work_consumed_from_grid_total",
		"work_consumed_from_storage_total",
		"work_consumed_from_producers_total",
		"work_buffered_total",
		"work_buffered_from_grid_total",
		"work_buffered_from_producers_total",
		"work_self_consumed_total",
		"work_self_supplied_total",
	}
	foxessSuffixes = []string{
		"battery_soc",
		"battery_bms_power",
		"battery_work_in_total",
		"battery_work_out_total",
		"battery_mode",
		"battery_bms_1_voltage",
		"battery_bms_1_current",
		"battery_bms_1_temperature",
	}
)

// defaultEnabledPatterns is built once at init and treated as immutable.
var defaultEnabledPatterns = compileDefaultPatterns()

func compileDefaultPatterns() []*regexp.Regexp {
	var patterns []*regexp.Regexp
	add := func(prefix string, suffixes []string) {
		for _, suffix := range suffixes {
			patterns = append(patterns, regexp.MustCompile("^"+prefix+regexp.QuoteMeta(suffix)+"$"))
		}
	}
	add(`kiwigrid_location_standard_[^_]+_harmonized_`, kiwigridPowerSuffixes)
	add(`kiwigrid_location_standard_[^_]+_harmonized_`, kiwigridWorkSuffixes)
	add(`foxesshybrid_battery_[^_]+_`, foxessSuffixes)
	return patterns
}

// EnabledByDefault reports whether the raw identifier is on the curated
// allow-list of broadly useful readings.
func EnabledByDefault(raw string) bool {
	key := CleanItemKey(raw)
	for _, pattern := range defaultEnabledPatterns {
		if pattern.MatchString(key) {
			return true
		}
	}
	return false
}
