package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
)

// Sentinel causes for decode failures.
var (
	ErrUnsupportedLayout = errors.New("raster: unsupported plane layout")
	ErrCorruptStream     = errors.New("raster: corrupt source stream")
)

// DecodeError reports which decode path failed and why.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("raster: %s decode: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// A decode strategy turns source bytes into a canonical image or fails.
// The chain is ordered most- to least-capable and stops at first success.
type decodeStrategy struct {
	name string
	fn   func([]byte) (*RGB8, error)
}

var decodeChain = []decodeStrategy{
	{"multi-plane", decodePlanes},
	{"standard-image", decodeStandard},
}

// Decode resolves raw file bytes into the canonical RGB image. The native
// multi-plane reader runs first (it is the only path that understands
// separated CMYK and spot planes); if it cannot handle the container the
// standard image registry is tried as the simpler fallback. An error is
// surfaced only when every path has failed.
func Decode(data []byte) (*RGB8, error) {
	var failures []error
	for _, s := range decodeChain {
		img, err := s.fn(data)
		if err == nil {
			return img, nil
		}
		failures = append(failures, &DecodeError{Path: s.name, Err: err})
	}
	return nil, errors.Join(failures...)
}

func decodePlanes(data []byte) (*RGB8, error) {
	buf, err := ParsePlanes(data)
	if err != nil {
		return nil, err
	}
	return buf.Canonicalize()
}

func decodeStandard(data []byte) (*RGB8, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}
	return FromImage(img), nil
}
