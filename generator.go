package terrazzo

import (
	"errors"
	"fmt"
	"image"
	"log"
	"math/rand"

	"github.com/veinstone/terrazzo/raster"
)

// ErrEmptyImage reports a degenerate zero-size canonical input. This is
// the only fatal segmentation failure; per-region placement failures
// degrade softly instead.
var ErrEmptyImage = errors.New("terrazzo: empty canonical image")

// Generator runs the segment → redistribute → compose pipeline over one
// canonical image. Build state is exposed for inspection but owned by
// the generator; the input image is never mutated.
type Generator struct {
	Input   *raster.RGB8
	Regions []Region
	Output  *raster.RGB8

	opt       Options
	rng       *rand.Rand
	occupancy []bool
	placed    int
}

// Result is what a pipeline run hands back to the caller.
type Result struct {
	Output   *raster.RGB8
	Detected int // regions found by the segmenter
	Placed   int // regions actually relocated
}

func NewGenerator(input *raster.RGB8, opt Options) *Generator {
	return &Generator{Input: input, opt: opt.clamped()}
}

// Generate is the one-shot form of NewGenerator + Run.
func Generate(input *raster.RGB8, opt Options) (*Result, error) {
	return NewGenerator(input, opt).Run()
}

// Run executes the full pipeline. The returned output always has the
// input's dimensions, even when zero regions could be relocated; in that
// case it is pixel-identical to the input.
func (g *Generator) Run() (*Result, error) {
	if g.Input.Empty() {
		return nil, fmt.Errorf("segment: %w", ErrEmptyImage)
	}
	g.rng = rand.New(rand.NewSource(g.opt.Seed))

	g.segment()
	g.redistribute()

	if g.placed == 0 && len(g.Regions) > 0 {
		log.Printf("terrazzo: no regions relocated (%d detected), output matches input", len(g.Regions))
	}
	return &Result{Output: g.Output, Detected: len(g.Regions), Placed: g.placed}, nil
}

// Rerun redistributes an already-detected region set (for example one
// loaded via ReadRegions) against the current input and options, skipping
// segmentation. With identical regions, seed and parameters it reproduces
// Run byte for byte.
func (g *Generator) Rerun() (*Result, error) {
	if g.Input.Empty() {
		return nil, fmt.Errorf("segment: %w", ErrEmptyImage)
	}
	g.rng = rand.New(rand.NewSource(g.opt.Seed))
	g.redistribute()
	return &Result{Output: g.Output, Detected: len(g.Regions), Placed: g.placed}, nil
}

func (g *Generator) segment() {
	switch g.opt.Strategy {
	case StrategyComponents:
		g.Regions = segmentComponents(g.Input, g.opt)
	default:
		g.Regions = segmentGrid(g.Input, g.opt)
	}
}

// Finalize normalizes the composed output for the encoding boundary.
// Before Run it returns an untouched copy of the input.
func (g *Generator) Finalize() *image.NRGBA {
	if g.Output != nil {
		return g.Output.ToNRGBA()
	}
	return g.Input.ToNRGBA()
}
