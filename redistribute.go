package terrazzo

import "math"

// redistribute composes the output: it copies the canonical background,
// then visits the regions in a seeded shuffle (detection order biases
// placements toward early-scanned tiles) and writes each one at the
// first collision-free candidate position. The occupancy check and claim
// run back to back on a single goroutine, which is what keeps the
// no-overlap invariant; a region that exhausts its retry budget simply
// stays where the background copy already has it.
func (g *Generator) redistribute() {
	g.Output = g.Input.Clone()
	g.occupancy = make([]bool, g.Input.W*g.Input.H)
	g.placed = 0

	order := make([]int, len(g.Regions))
	for i := range order {
		order[i] = i
	}
	g.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	budget := g.opt.retryBudget()
	rangePx := int(math.Round(float64(min(g.Input.W, g.Input.H)) * g.opt.RedistributionIntensity))

	for _, idx := range order {
		r := &g.Regions[idx]
		loX, hiX, okX := targetInterval(r.Rect.Min.X, r.Rect.Dx(), g.Input.W, rangePx)
		loY, hiY, okY := targetInterval(r.Rect.Min.Y, r.Rect.Dy(), g.Input.H, rangePx)
		if !okX || !okY {
			continue // region does not fit anywhere, leave it in place
		}
		for _i := 0; _i < budget; _i++ {
			x := loX + g.rng.Intn(hiX-loX+1)
			y := loY + g.rng.Intn(hiY-loY+1)
			if !g.footprintFree(r, x, y) {
				continue
			}
			g.place(r, x, y)
			g.placed++
			break
		}
	}
}

// targetInterval clamps the candidate top-left range on one axis so the
// region's whole footprint stays inside the image. ok is false when the
// region spans the full dimension or more: such a region has no room to
// move on this axis and is never relocated.
func targetInterval(origin, size, dim, rangePx int) (lo, hi int, ok bool) {
	if size <= 0 || size >= dim {
		return 0, 0, false
	}
	lo = max(0, origin-rangePx)
	hi = min(dim-size, origin+rangePx)
	return lo, hi, lo <= hi
}

// footprintFree reports whether every masked cell of the region's
// footprint at (x0, y0) is still unclaimed.
func (g *Generator) footprintFree(r *Region, x0, y0 int) bool {
	w := r.Rect.Dx()
	for y := 0; y < r.Rect.Dy(); y++ {
		occ := (y0+y)*g.Input.W + x0
		row := y * w
		for x := 0; x < w; x++ {
			if r.member(row+x) && g.occupancy[occ+x] {
				return false
			}
		}
	}
	return true
}

// place writes the region snapshot at (x0, y0), mask-respecting, and
// claims the corresponding occupancy cells.
func (g *Generator) place(r *Region, x0, y0 int) {
	w := r.Rect.Dx()
	for y := 0; y < r.Rect.Dy(); y++ {
		dstRow := (y0+y)*g.Input.W + x0
		srcRow := y * w
		for x := 0; x < w; x++ {
			i := srcRow + x
			if !r.member(i) {
				continue
			}
			g.occupancy[dstRow+x] = true
			d := (dstRow + x) * 3
			s := i * 3
			g.Output.Pix[d] = r.Pix[s]
			g.Output.Pix[d+1] = r.Pix[s+1]
			g.Output.Pix[d+2] = r.Pix[s+2]
		}
	}
}
