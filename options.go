// Package terrazzo generates a synthetic stone-surface pattern from a
// photograph of a stone slab: flake regions of locally high color
// variance are detected and relocated to randomized non-overlapping
// positions while the background texture stays in place.
package terrazzo

import (
	"image"
	"math"
)

// Strategy selects how flake regions are detected.
type Strategy int

const (
	// StrategyGrid scans fixed-size tiles and keeps the ones whose summed
	// per-channel color variance clears a sensitivity threshold. Regions
	// are full tiles and may overlap.
	StrategyGrid Strategy = iota
	// StrategyComponents thresholds a luminance map, cleans it up
	// morphologically and labels connected components with exact
	// per-pixel masks.
	StrategyComponents
)

func (s Strategy) String() string {
	switch s {
	case StrategyComponents:
		return "components"
	default:
		return "grid"
	}
}

type Options struct {
	// How far a flake may travel, as a fraction of the short image edge.
	// Also shrinks the grid scan stride, so higher values detect more
	// tiles. Range (0,1].
	RedistributionIntensity float64
	// Scales the candidate flake size. 1.0 gives 200px grid tiles.
	// Range [0.5,2.0].
	FlakeSizeRange float64
	// Higher values lower the variance threshold so fainter grain
	// qualifies as a flake. Range (0,1].
	ColorSensitivity float64
	// Detection strategy; StrategyGrid by default.
	Strategy Strategy
	// Seed for the placement RNG. A fixed seed with fixed parameters
	// reproduces the output byte for byte.
	Seed int64
	// Placement attempts per region. 0 picks the strategy default:
	// 1 for grid tiles, 20 for masked components.
	Retries int
	// Segmentation worker count; 0 means GOMAXPROCS.
	Workers int
}

func DefaultOptions() Options {
	return Options{
		RedistributionIntensity: 0.5,
		FlakeSizeRange:          1.0,
		ColorSensitivity:        0.5,
		Strategy:                StrategyGrid,
		Seed:                    1,
	}
}

// OptionsFromSize derives options with a flake size proportioned to the
// image, so small scans and large slab photographs both yield a usable
// flake count.
func OptionsFromSize(size image.Point) Options {
	opt := DefaultOptions()
	if size.X <= 0 || size.Y <= 0 {
		return opt
	}
	short := min(size.X, size.Y)
	opt.FlakeSizeRange = clampF(float64(short)/1600.0, 0.5, 2.0)
	return opt
}

// clamped forces every parameter into its documented range; zero or
// negative ratios fall back to the defaults.
func (o Options) clamped() Options {
	def := DefaultOptions()
	if o.RedistributionIntensity <= 0 {
		o.RedistributionIntensity = def.RedistributionIntensity
	}
	o.RedistributionIntensity = clampF(o.RedistributionIntensity, 0, 1)
	if o.FlakeSizeRange <= 0 {
		o.FlakeSizeRange = def.FlakeSizeRange
	}
	o.FlakeSizeRange = clampF(o.FlakeSizeRange, 0.5, 2.0)
	if o.ColorSensitivity <= 0 {
		o.ColorSensitivity = def.ColorSensitivity
	}
	o.ColorSensitivity = clampF(o.ColorSensitivity, 0, 1)
	if o.Retries < 0 {
		o.Retries = 0
	}
	return o
}

// retryBudget is the per-region placement attempt count. Grid tiles are
// plentiful and interchangeable, so one attempt each is enough; masked
// components are scarcer and worth retrying.
func (o Options) retryBudget() int {
	if o.Retries > 0 {
		return o.Retries
	}
	if o.Strategy == StrategyComponents {
		return 20
	}
	return 1
}

// tileSize is the grid tile edge in pixels.
func (o Options) tileSize() int {
	return int(math.Round(200 * o.FlakeSizeRange))
}

// scanStride shrinks as intensity rises, so an aggressive run samples
// the slab more densely.
func (o Options) scanStride() int {
	return max(1, int(float64(o.tileSize())/(10*o.RedistributionIntensity+1)))
}

// varianceThreshold is the summed per-channel variance a tile must
// exceed to count as a flake.
func (o Options) varianceThreshold() float64 {
	return 500 * (1 - o.ColorSensitivity)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
