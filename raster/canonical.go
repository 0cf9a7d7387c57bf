package raster

import "fmt"

// Canonicalize resolves a plane buffer into the canonical 8-bit RGB image.
//
// Resolution order: an unambiguous 3-channel RGB layout is copied sample
// for sample, a single gray plane is replicated across all three channels,
// and four or more planes are read as CMYK with every plane past the
// fourth dropped. Spot planes have no RGB equivalent, so dropping them is
// a deliberate, irreversible fidelity loss rather than a defect; tests
// pin the behavior. Planar storage is transposed to interleaved first.
func (p *PlaneBuffer) Canonicalize() (*RGB8, error) {
	if p.Width <= 0 || p.Height <= 0 || p.Channels <= 0 {
		return nil, fmt.Errorf("%w: empty plane buffer", ErrUnsupportedLayout)
	}
	if len(p.Samples) < p.Width*p.Height*p.Channels {
		return nil, fmt.Errorf("%w: %d samples for %dx%dx%d",
			ErrCorruptStream, len(p.Samples), p.Width, p.Height, p.Channels)
	}

	samples := p.Samples
	if p.Planar {
		samples = interleave(samples, p.Width*p.Height, p.Channels)
	}

	// A profile header can disambiguate an unknown layout: a CMYK-class
	// profile on a 4+ plane buffer confirms the separated reading. The
	// analytic conversion below is still the executed path either way;
	// full profile-aware conversion is out of scope.
	hint := p.Photometric
	if hint == PhotometricUnknown && len(p.ICC) > 0 {
		if info, err := ParseProfileHeader(p.ICC); err == nil {
			switch info.ColorSpace {
			case "RGB ":
				hint = PhotometricRGB
			case "GRAY":
				hint = PhotometricGray
			case "CMYK":
				hint = PhotometricSeparated
			}
		}
	}

	switch {
	case p.Channels == 3 && hint != PhotometricSeparated:
		return canonicalRGB(samples, p.Width, p.Height, p.BitsPerSample), nil
	case p.Channels == 1,
		p.Channels == 2 && hint == PhotometricGray: // gray + alpha plane
		return canonicalGray(samples, p.Width, p.Height, p.Channels, p.BitsPerSample), nil
	case p.Channels >= 4:
		return canonicalCMYK(samples, p.Width, p.Height, p.Channels, p.BitsPerSample), nil
	default:
		return nil, fmt.Errorf("%w: %d channels with %s hint",
			ErrUnsupportedLayout, p.Channels, hint)
	}
}

// interleave transposes plane-major samples to pixel-major.
func interleave(planar []uint16, pixels, channels int) []uint16 {
	out := make([]uint16, pixels*channels)
	for c := 0; c < channels; c++ {
		plane := planar[c*pixels : (c+1)*pixels]
		for i, v := range plane {
			out[i*channels+c] = v
		}
	}
	return out
}

func canonicalRGB(samples []uint16, w, h, bits int) *RGB8 {
	out := NewRGB8(w, h)
	if bits == 8 {
		for i := 0; i < w*h*3; i++ {
			out.Pix[i] = uint8(samples[i])
		}
		return out
	}
	for i := 0; i < w*h*3; i++ {
		out.Pix[i] = uint8(samples[i] >> 8)
	}
	return out
}

func canonicalGray(samples []uint16, w, h, channels, bits int) *RGB8 {
	out := NewRGB8(w, h)
	shift := 0
	if bits == 16 {
		shift = 8
	}
	for i := 0; i < w*h; i++ {
		v := uint8(samples[i*channels] >> shift)
		out.Pix[i*3] = v
		out.Pix[i*3+1] = v
		out.Pix[i*3+2] = v
	}
	return out
}

// canonicalCMYK applies the analytic conversion
//
//	R = 255 (1-C)(1-K),  G = 255 (1-M)(1-K),  B = 255 (1-Y)(1-K)
//
// after normalizing each of the first four planes to [0,1] by its
// observed range, which tolerates 16-bit and partially-inked sources
// without assuming a fixed full scale.
func canonicalCMYK(samples []uint16, w, h, channels, bits int) *RGB8 {
	pixels := w * h
	full := float64(uint32(1)<<bits - 1)

	var lo, hi [4]float64
	for c := 0; c < 4; c++ {
		lo[c] = full
		hi[c] = 0
	}
	for i := 0; i < pixels; i++ {
		base := i * channels
		for c := 0; c < 4; c++ {
			v := float64(samples[base+c])
			if v < lo[c] {
				lo[c] = v
			}
			if v > hi[c] {
				hi[c] = v
			}
		}
	}

	// Constant planes carry no range to stretch; scale them against the
	// sample full scale so an all-max key plane still reads as solid ink.
	var scale, shiftv [4]float64
	for c := 0; c < 4; c++ {
		if hi[c] > lo[c] {
			scale[c] = 1 / (hi[c] - lo[c])
			shiftv[c] = lo[c]
		} else {
			scale[c] = 1 / full
			shiftv[c] = 0
		}
	}

	out := NewRGB8(w, h)
	for i := 0; i < pixels; i++ {
		base := i * channels
		cy := (float64(samples[base]) - shiftv[0]) * scale[0]
		mg := (float64(samples[base+1]) - shiftv[1]) * scale[1]
		yl := (float64(samples[base+2]) - shiftv[2]) * scale[2]
		k := (float64(samples[base+3]) - shiftv[3]) * scale[3]

		ink := 1 - k
		out.Pix[i*3] = clamp8(255 * (1 - cy) * ink)
		out.Pix[i*3+1] = clamp8(255 * (1 - mg) * ink)
		out.Pix[i*3+2] = clamp8(255 * (1 - yl) * ink)
	}
	return out
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
