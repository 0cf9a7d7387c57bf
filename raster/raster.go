// Package raster decodes multi-plane raster files into the canonical
// three-channel working image the rest of the pipeline operates on.
package raster

import (
	"image"
	"image/color"
)

// RGB8 is the canonical working image: interleaved 8-bit RGB samples
// in a flat buffer, len(Pix) == W*H*3.
type RGB8 struct {
	W, H int
	Pix  []uint8
}

func NewRGB8(w, h int) *RGB8 {
	return &RGB8{W: w, H: h, Pix: make([]uint8, w*h*3)}
}

// PixOffset returns the buffer index of the first (red) sample at (x, y).
func (m *RGB8) PixOffset(x, y int) int {
	return (y*m.W + x) * 3
}

func (m *RGB8) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.W, m.H)
}

func (m *RGB8) Empty() bool {
	return m == nil || m.W <= 0 || m.H <= 0
}

func (m *RGB8) Clone() *RGB8 {
	c := &RGB8{W: m.W, H: m.H, Pix: make([]uint8, len(m.Pix))}
	copy(c.Pix, m.Pix)
	return c
}

// ToNRGBA converts to the stdlib image type used at the encoding boundary.
func (m *RGB8) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.W, m.H))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			off := m.PixOffset(x, y)
			dst := out.PixOffset(x, y)
			out.Pix[dst] = m.Pix[off]
			out.Pix[dst+1] = m.Pix[off+1]
			out.Pix[dst+2] = m.Pix[off+2]
			out.Pix[dst+3] = 255
		}
	}
	return out
}

// At implements enough of image.Image for palette extraction helpers.
func (m *RGB8) At(x, y int) color.Color {
	off := m.PixOffset(x, y)
	return color.NRGBA{R: m.Pix[off], G: m.Pix[off+1], B: m.Pix[off+2], A: 255}
}

func (m *RGB8) ColorModel() color.Model {
	return color.NRGBAModel
}

// FromImage flattens any stdlib image into the canonical buffer.
func FromImage(img image.Image) *RGB8 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := NewRGB8(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := out.PixOffset(x, y)
			out.Pix[off] = uint8(r >> 8)
			out.Pix[off+1] = uint8(g >> 8)
			out.Pix[off+2] = uint8(b >> 8)
		}
	}
	return out
}
