// Package stats provides the cross-sectional statistics shared by the
// sector and picker stages. All functions skip undefined inputs and use the
// sample standard deviation (n-1).
package stats

import (
	"math"
	"sort"

	"daypick/internal/market"
)

// Mean averages the defined values, NA when none are defined.
func Mean(xs []float64) float64 {
	sum, n := 0.0, 0
	for _, x := range xs {
		if market.Defined(x) {
			sum += x
			n++
		}
	}
	if n == 0 {
		return market.NA()
	}
	return sum / float64(n)
}

// Median returns the middle defined value, averaging the two middles for an
// even count. NA when no value is defined.
func Median(xs []float64) float64 {
	var def []float64
	for _, x := range xs {
		if market.Defined(x) {
			def = append(def, x)
		}
	}
	if len(def) == 0 {
		return market.NA()
	}
	sort.Float64s(def)
	mid := len(def) / 2
	if len(def)%2 == 1 {
		return def[mid]
	}
	return (def[mid-1] + def[mid]) / 2
}

// Std returns the sample standard deviation of the defined values, NA when
// fewer than two are defined.
func Std(xs []float64) float64 {
	m := Mean(xs)
	if !market.Defined(m) {
		return market.NA()
	}
	sum, n := 0.0, 0
	for _, x := range xs {
		if market.Defined(x) {
			d := x - m
			sum += d * d
			n++
		}
	}
	if n < 2 {
		return market.NA()
	}
	return math.Sqrt(sum / float64(n-1))
}

// Standardize z-scores xs against its own mean and standard deviation.
// When the deviation is zero or undefined every element maps to exactly 0,
// so a degenerate cross-section never flags all members as extreme.
// Undefined inputs stay undefined when the deviation is usable.
func Standardize(xs []float64) []float64 {
	out := make([]float64, len(xs))
	sd := Std(xs)
	if !market.Defined(sd) || sd == 0 {
		return out
	}
	m := Mean(xs)
	for i, x := range xs {
		if market.Defined(x) {
			out[i] = (x - m) / sd
		} else {
			out[i] = market.NA()
		}
	}
	return out
}

// StandardizeBy z-scores values within each group given by keys; keys[i]
// names the group of values[i]. Zero-variance groups standardize to zeros,
// same as Standardize.
func StandardizeBy(keys []string, values []float64) []float64 {
	groups := make(map[string][]int)
	for i, k := range keys {
		groups[k] = append(groups[k], i)
	}
	out := make([]float64, len(values))
	for _, idx := range groups {
		sub := make([]float64, len(idx))
		for j, i := range idx {
			sub[j] = values[i]
		}
		z := Standardize(sub)
		for j, i := range idx {
			out[i] = z[j]
		}
	}
	return out
}

// ScoreLess orders scores ascending with undefined values below every
// defined one, so a descending stable sort pushes them last
// deterministically.
func ScoreLess(a, b float64) bool {
	ad, bd := market.Defined(a), market.Defined(b)
	if ad != bd {
		return !ad
	}
	if !ad {
		return false
	}
	return a < b
}

// RollingMean fills out[i] with the mean of xs[i-w+1..i]. The value is
// undefined until the window is full and whenever the window holds an
// undefined element.
func RollingMean(xs []float64, w int) []float64 {
	return rolling(xs, w, func(win []float64) float64 {
		sum := 0.0
		for _, v := range win {
			sum += v
		}
		return sum / float64(len(win))
	})
}

// RollingMax is RollingMean's shape with a max aggregate.
func RollingMax(xs []float64, w int) []float64 {
	return rolling(xs, w, func(win []float64) float64 {
		max := win[0]
		for _, v := range win[1:] {
			if v > max {
				max = v
			}
		}
		return max
	})
}

func rolling(xs []float64, w int, agg func([]float64) float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		out[i] = windowAt(xs, i, w, agg)
	}
	return out
}

func windowAt(xs []float64, i, w int, agg func([]float64) float64) float64 {
	if i+1 < w {
		return market.NA()
	}
	win := xs[i+1-w : i+1]
	for _, v := range win {
		if !market.Defined(v) {
			return market.NA()
		}
	}
	return agg(win)
}
