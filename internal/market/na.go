package market

import "math"

// Undefined values travel as NaN. Filters must resolve them through the
// helpers below so that a missing value always fails the filter that needs
// it (fail-closed), instead of being silently defaulted at each call site.

// NA returns the undefined value.
func NA() float64 { return math.NaN() }

// Defined reports whether v carries a usable finite value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Or resolves v to fallback when undefined. Use for explicit, documented
// defaulting only; threshold checks should use the comparison helpers.
func Or(v, fallback float64) float64 {
	if Defined(v) {
		return v
	}
	return fallback
}

// AtLeast reports v >= min, failing closed on undefined.
func AtLeast(v, min float64) bool { return Defined(v) && v >= min }

// AtMost reports v <= max, failing closed on undefined.
func AtMost(v, max float64) bool { return Defined(v) && v <= max }

// Within reports lo <= v <= hi, failing closed on undefined.
func Within(v, lo, hi float64) bool { return Defined(v) && v >= lo && v <= hi }

// Above reports v > floor, failing closed on undefined.
func Above(v, floor float64) bool { return Defined(v) && v > floor }
