package utils

import (
	"log"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/veinstone/terrazzo"
	"github.com/veinstone/terrazzo/raster"
)

type PaletteMethod int

const (
	PaletteMethodDominantColor PaletteMethod = iota
	PaletteMethodKMeans
)

func (m PaletteMethod) String() string {
	switch m {
	case PaletteMethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

// ExtractPalette summarizes a slab's tones as k representative colors.
// The kmeans method falls back to dominantcolor when clustering yields
// nothing usable.
func ExtractPalette(img *raster.RGB8, k int, method PaletteMethod) []colorful.Color {
	if k <= 0 || img.Empty() {
		return nil
	}
	if method == PaletteMethodKMeans {
		if p := kmeansPalette(img, k); len(p) > 0 {
			return p
		}
		log.Println("palette: kmeans produced no clusters, falling back to dominantcolor")
	}
	return dominantPalette(img, k)
}

// SortPaletteByBrightness orders colors dark to bright, so the first
// entry reads as the slab's background tone.
func SortPaletteByBrightness(palette []colorful.Color) {
	slices.SortFunc(palette, func(a, b colorful.Color) int {
		ra, ga, ba := a.LinearRgb()
		rb, gb, bb := b.LinearRgb()
		ya := 0.2126*ra + 0.7152*ga + 0.0722*ba
		yb := 0.2126*rb + 0.7152*gb + 0.0722*bb
		switch {
		case ya < yb:
			return -1
		case ya > yb:
			return 1
		default:
			return 0
		}
	})
}

func dominantPalette(img *raster.RGB8, k int) []colorful.Color {
	found := dominantcolor.FindWeight(img, max(k*4, 16))
	if len(found) == 0 {
		return nil
	}

	cands := make([]colorful.Color, 0, len(found))
	for _, c := range found {
		col, _ := colorful.MakeColor(c.RGBA)
		cands = append(cands, col.Clamped())
	}
	return diverseSubset(cands, k)
}

func kmeansPalette(img *raster.RGB8, k int) []colorful.Color {
	// Subsample so clustering stays tractable on print-resolution scans.
	const maxSamples = 12000
	step := 1
	if img.W*img.H > maxSamples {
		step = int(math.Sqrt(float64(img.W*img.H)/maxSamples)) + 1
	}

	dataset := make(clusters.Observations, 0, maxSamples)
	for y := 0; y < img.H; y += step {
		for x := 0; x < img.W; x += step {
			off := img.PixOffset(x, y)
			dataset = append(dataset, clusters.Coordinates{
				float64(img.Pix[off]) / 255.0,
				float64(img.Pix[off+1]) / 255.0,
				float64(img.Pix[off+2]) / 255.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	workK := min(max(k*2, k+1), len(dataset))
	km := kmeans.New()
	cc, err := km.Partition(dataset, workK)
	if err != nil || len(cc) == 0 {
		return nil
	}

	// Most populated clusters first, then thin to a diverse subset.
	slices.SortFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})
	cands := make([]colorful.Color, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 {
			continue
		}
		cands = append(cands, colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped())
	}
	return diverseSubset(cands, k)
}

// diverseSubset greedily picks k colors maximizing the minimum pairwise
// Lab distance, seeded with the strongest candidate (cands arrive in
// weight order).
func diverseSubset(cands []colorful.Color, k int) []colorful.Color {
	if len(cands) == 0 {
		return nil
	}
	if k >= len(cands) {
		return slices.Clone(cands)
	}

	out := []colorful.Color{cands[0]}
	used := make([]bool, len(cands))
	used[0] = true
	for len(out) < k {
		bestIdx := -1
		bestD := -1.0
		for i, c := range cands {
			if used[i] {
				continue
			}
			minD := math.MaxFloat64
			for _, s := range out {
				if d := labDistSq(c, s); d < minD {
					minD = d
				}
			}
			if minD > bestD {
				bestD = minD
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		used[bestIdx] = true
		out = append(out, cands[bestIdx])
	}
	return out
}

func labDistSq(a, b colorful.Color) float64 {
	la, aa, ba := a.Lab()
	lb, ab, bb := b.Lab()
	d0 := la - lb
	d1 := aa - ab
	d2 := ba - bb
	return d0*d0 + d1*d1 + d2*d2
}

// SummarizeRegions buckets each detected flake by the palette tone
// nearest its mean color, a cheap diagnostic of what the segmenter
// actually picked up.
func SummarizeRegions(regions []terrazzo.Region, palette []colorful.Color) []int {
	if len(palette) == 0 {
		return nil
	}
	counts := make([]int, len(palette))
	for i := range regions {
		mean := regionMeanColor(&regions[i])
		best := 0
		bestD := math.MaxFloat64
		for p, c := range palette {
			if d := labDistSq(mean, c); d < bestD {
				bestD = d
				best = p
			}
		}
		counts[best]++
	}
	return counts
}

func regionMeanColor(r *terrazzo.Region) colorful.Color {
	var sr, sg, sb float64
	n := 0
	for i := 0; i*3+2 < len(r.Pix); i++ {
		if r.Mask != nil && !r.Mask[i] {
			continue
		}
		sr += float64(r.Pix[i*3])
		sg += float64(r.Pix[i*3+1])
		sb += float64(r.Pix[i*3+2])
		n++
	}
	if n == 0 {
		return colorful.Color{}
	}
	f := float64(n) * 255.0
	return colorful.Color{R: sr / f, G: sg / f, B: sb / f}
}
