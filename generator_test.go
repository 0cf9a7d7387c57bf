package terrazzo

import (
	"bytes"
	"errors"
	"testing"

	"github.com/veinstone/terrazzo/raster"
)

// makeSlab builds a deterministic speckled test image so grid tiles have
// high per-channel variance.
func makeSlab(w, h int) *raster.RGB8 {
	img := raster.NewRGB8(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := uint32(x*1664525 + y*1013904223)
			n ^= n >> 13
			off := img.PixOffset(x, y)
			img.Pix[off] = uint8(n)
			img.Pix[off+1] = uint8(n >> 8)
			img.Pix[off+2] = uint8(n >> 16)
		}
	}
	return img
}

func uniformSlab(w, h int, v uint8) *raster.RGB8 {
	img := raster.NewRGB8(w, h)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func testOptions() Options {
	opt := DefaultOptions()
	opt.FlakeSizeRange = 0.5 // 100px tiles fit the test images
	opt.ColorSensitivity = 0.9
	return opt
}

func TestRunPreservesDimensions(t *testing.T) {
	slab := makeSlab(300, 260)
	res, err := Generate(slab, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Output.W != 300 || res.Output.H != 260 {
		t.Fatalf("output %dx%d, want 300x260", res.Output.W, res.Output.H)
	}
	if res.Detected == 0 {
		t.Fatal("expected flakes in a speckled slab")
	}
}

func TestZeroRegionsIdentity(t *testing.T) {
	slab := uniformSlab(300, 300, 180)
	res, err := Generate(slab, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Detected != 0 {
		t.Fatalf("uniform slab produced %d regions", res.Detected)
	}
	if !bytes.Equal(res.Output.Pix, slab.Pix) {
		t.Fatal("output differs from input with zero regions")
	}
}

func TestDeterministicOutput(t *testing.T) {
	opt := testOptions()
	opt.Seed = 99

	a, err := Generate(makeSlab(320, 320), opt)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(makeSlab(320, 320), opt)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Output.Pix, b.Output.Pix) {
		t.Fatal("same seed and parameters produced different outputs")
	}
	if a.Placed != b.Placed {
		t.Fatalf("placement counts differ: %d vs %d", a.Placed, b.Placed)
	}
}

func TestInputNeverMutated(t *testing.T) {
	slab := makeSlab(300, 300)
	before := append([]uint8(nil), slab.Pix...)
	if _, err := Generate(slab, testOptions()); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(slab.Pix, before) {
		t.Fatal("canonical input was mutated by the pipeline")
	}
}

func TestEmptyImageFatal(t *testing.T) {
	_, err := Generate(&raster.RGB8{}, DefaultOptions())
	if !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}

func TestFinalizeBeforeRun(t *testing.T) {
	slab := makeSlab(40, 30)
	out := NewGenerator(slab, DefaultOptions()).Finalize()
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 30 {
		t.Fatalf("finalize bounds %v", out.Bounds())
	}
}
