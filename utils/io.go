// Package utils carries the boundary helpers around the core pipeline:
// slab file loading through the decode chain, lossless output encoding
// at print resolution, previews and palette summaries.
package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"os"

	"github.com/nfnt/resize"
	"github.com/veinstone/terrazzo/raster"
)

// OpenSlab reads a slab photograph from disk through the full decode
// chain: native multi-plane reader first, standard image formats as the
// fallback. The error carries every failed path when nothing works.
func OpenSlab(path string) (*raster.RGB8, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := raster.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return img, nil
}

// SaveImage writes a plain PNG.
func SaveImage(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// Output resolution metadata: 300 DPI expressed as pixels per metre.
const pixelsPerMetre300DPI = 11811

// SavePNG300DPI writes a lossless PNG tagged with 300 DPI resolution
// metadata. The stdlib encoder emits no pHYs chunk, so one is spliced in
// after IHDR.
func SavePNG300DPI(img image.Image, filename string) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	tagged, err := withPhys(buf.Bytes(), pixelsPerMetre300DPI)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, tagged, 0o644)
}

// withPhys inserts a pHYs chunk directly after IHDR. IHDR is required
// to be the first chunk and has a fixed 13-byte payload, so the splice
// point is constant.
func withPhys(pngData []byte, ppm uint32) ([]byte, error) {
	const ihdrEnd = 8 + 8 + 13 + 4
	if len(pngData) < ihdrEnd || string(pngData[12:16]) != "IHDR" {
		return nil, fmt.Errorf("not a PNG stream")
	}

	chunk := make([]byte, 0, 21)
	chunk = binary.BigEndian.AppendUint32(chunk, 9)
	body := make([]byte, 0, 13)
	body = append(body, 'p', 'H', 'Y', 's')
	body = binary.BigEndian.AppendUint32(body, ppm)
	body = binary.BigEndian.AppendUint32(body, ppm)
	body = append(body, 1) // unit: metre
	chunk = append(chunk, body...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(body))

	out := make([]byte, 0, len(pngData)+len(chunk))
	out = append(out, pngData[:ihdrEnd]...)
	out = append(out, chunk...)
	out = append(out, pngData[ihdrEnd:]...)
	return out, nil
}

// Preview scales an image down to fit within maxEdge on both axes,
// matching the on-screen preview the interactive surface shows. Images
// already small enough come back unchanged.
func Preview(img image.Image, maxEdge uint) image.Image {
	b := img.Bounds()
	if uint(b.Dx()) <= maxEdge && uint(b.Dy()) <= maxEdge {
		return img
	}
	return resize.Thumbnail(maxEdge, maxEdge, img, resize.Lanczos3)
}
