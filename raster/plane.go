package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

// Photometric is the color hint carried by a decoded plane buffer.
type Photometric int

const (
	PhotometricUnknown Photometric = iota
	PhotometricGray
	PhotometricRGB
	PhotometricSeparated // CMYK plus optional spot planes
)

func (p Photometric) String() string {
	switch p {
	case PhotometricGray:
		return "gray"
	case PhotometricRGB:
		return "rgb"
	case PhotometricSeparated:
		return "separated"
	default:
		return "unknown"
	}
}

// PlaneBuffer is a raw multi-plane pixel buffer of known dimensions but
// uncommitted color semantics. Samples are widened to uint16 so 8- and
// 16-bit sources share one layout. When Planar is set the samples are
// plane-major (all of channel 0, then channel 1, ...); otherwise they are
// interleaved per pixel. Immutable once parsed.
type PlaneBuffer struct {
	Width, Height int
	Channels      int
	BitsPerSample int
	Planar        bool
	Photometric   Photometric
	Samples       []uint16
	ICC           []byte
}

// TIFF tags the plane reader understands.
const (
	tagImageWidth    = 256
	tagImageLength   = 257
	tagBitsPerSample = 258
	tagCompression   = 259
	tagPhotometric   = 262
	tagStripOffsets  = 273
	tagSamplesPerPix = 277
	tagRowsPerStrip  = 278
	tagStripCounts   = 279
	tagPlanarConfig  = 284
	tagICCProfile    = 34675
)

const (
	compressionNone       = 1
	compressionDeflate    = 8
	compressionDeflateOld = 32946
)

// maxPixels caps allocations driven by untrusted headers.
const maxPixels = 1 << 28

type ifdEntry struct {
	typ    uint16
	count  uint32
	values []uint64
	raw    []byte
}

// ParsePlanes reads a multi-plane TIFF container into a PlaneBuffer.
// Unsupported containers report ErrUnsupportedLayout so the decode chain
// can fall through to the standard-image path; malformed containers
// report ErrCorruptStream.
func ParsePlanes(data []byte) (*PlaneBuffer, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: short header", ErrUnsupportedLayout)
	}
	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: no TIFF byte-order mark", ErrUnsupportedLayout)
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("%w: bad TIFF magic", ErrUnsupportedLayout)
	}

	entries, err := readIFD(data, order, order.Uint32(data[4:8]))
	if err != nil {
		return nil, err
	}

	width := int(firstValue(entries, tagImageWidth, 0))
	height := int(firstValue(entries, tagImageLength, 0))
	if width <= 0 || height <= 0 || width*height > maxPixels {
		return nil, fmt.Errorf("%w: implausible dimensions %dx%d", ErrCorruptStream, width, height)
	}

	channels := int(firstValue(entries, tagSamplesPerPix, 1))
	if channels < 1 || channels > 16 {
		return nil, fmt.Errorf("%w: %d sample planes", ErrUnsupportedLayout, channels)
	}

	bits, err := uniformBits(entries)
	if err != nil {
		return nil, err
	}

	compression := int(firstValue(entries, tagCompression, compressionNone))
	switch compression {
	case compressionNone, compressionDeflate, compressionDeflateOld:
	default:
		return nil, fmt.Errorf("%w: compression scheme %d", ErrUnsupportedLayout, compression)
	}

	planarCfg := int(firstValue(entries, tagPlanarConfig, 1))
	if planarCfg != 1 && planarCfg != 2 {
		return nil, fmt.Errorf("%w: planar configuration %d", ErrUnsupportedLayout, planarCfg)
	}

	raw, err := assembleStrips(data, entries, compression)
	if err != nil {
		return nil, err
	}

	total := width * height * channels
	if len(raw) < total*bits/8 {
		return nil, fmt.Errorf("%w: %d strip bytes for %d samples", ErrCorruptStream, len(raw), total)
	}

	samples := make([]uint16, total)
	if bits == 8 {
		for i := 0; i < total; i++ {
			samples[i] = uint16(raw[i])
		}
	} else {
		for i := 0; i < total; i++ {
			samples[i] = order.Uint16(raw[2*i : 2*i+2])
		}
	}

	buf := &PlaneBuffer{
		Width:         width,
		Height:        height,
		Channels:      channels,
		BitsPerSample: bits,
		Planar:        planarCfg == 2,
		Samples:       samples,
	}

	switch firstValue(entries, tagPhotometric, 99) {
	case 0: // WhiteIsZero: invert so zero means black like everything else
		full := uint16(1<<bits - 1)
		for i, v := range samples {
			samples[i] = full - v
		}
		buf.Photometric = PhotometricGray
	case 1:
		buf.Photometric = PhotometricGray
	case 2:
		buf.Photometric = PhotometricRGB
	case 5:
		buf.Photometric = PhotometricSeparated
	default:
		buf.Photometric = PhotometricUnknown
	}

	if e, ok := entries[tagICCProfile]; ok && len(e.raw) > 0 {
		buf.ICC = append([]byte(nil), e.raw...)
	}
	return buf, nil
}

func readIFD(data []byte, order binary.ByteOrder, off uint32) (map[uint16]ifdEntry, error) {
	if int(off)+2 > len(data) {
		return nil, fmt.Errorf("%w: IFD offset beyond stream", ErrCorruptStream)
	}
	n := int(order.Uint16(data[off : off+2]))
	base := int(off) + 2
	if base+n*12 > len(data) {
		return nil, fmt.Errorf("%w: truncated IFD", ErrCorruptStream)
	}

	entries := make(map[uint16]ifdEntry, n)
	for i := 0; i < n; i++ {
		e := data[base+i*12 : base+i*12+12]
		tag := order.Uint16(e[0:2])
		typ := order.Uint16(e[2:4])
		count := order.Uint32(e[4:8])

		size := typeSize(typ)
		if size == 0 {
			continue // unknown field type, skip the tag
		}
		total := int(count) * size
		var raw []byte
		if total <= 4 {
			raw = e[8 : 8+total]
		} else {
			ptr := int(order.Uint32(e[8:12]))
			if ptr+total > len(data) || ptr < 0 {
				return nil, fmt.Errorf("%w: tag %d points beyond stream", ErrCorruptStream, tag)
			}
			raw = data[ptr : ptr+total]
		}

		entry := ifdEntry{typ: typ, count: count, raw: raw}
		switch typ {
		case 1, 7: // BYTE, UNDEFINED
			entry.values = make([]uint64, count)
			for j := 0; j < int(count); j++ {
				entry.values[j] = uint64(raw[j])
			}
		case 3: // SHORT
			entry.values = make([]uint64, count)
			for j := 0; j < int(count); j++ {
				entry.values[j] = uint64(order.Uint16(raw[2*j : 2*j+2]))
			}
		case 4: // LONG
			entry.values = make([]uint64, count)
			for j := 0; j < int(count); j++ {
				entry.values[j] = uint64(order.Uint32(raw[4*j : 4*j+4]))
			}
		}
		entries[tag] = entry
	}
	return entries, nil
}

func typeSize(typ uint16) int {
	switch typ {
	case 1, 2, 7:
		return 1
	case 3:
		return 2
	case 4:
		return 4
	case 5:
		return 8
	default:
		return 0
	}
}

func firstValue(entries map[uint16]ifdEntry, tag uint16, def uint64) uint64 {
	if e, ok := entries[tag]; ok && len(e.values) > 0 {
		return e.values[0]
	}
	return def
}

func uniformBits(entries map[uint16]ifdEntry) (int, error) {
	e, ok := entries[tagBitsPerSample]
	if !ok || len(e.values) == 0 {
		return 0, fmt.Errorf("%w: missing bits-per-sample", ErrUnsupportedLayout)
	}
	bits := int(e.values[0])
	for _, v := range e.values {
		if int(v) != bits {
			return 0, fmt.Errorf("%w: mixed per-plane bit depths", ErrUnsupportedLayout)
		}
	}
	if bits != 8 && bits != 16 {
		return 0, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedLayout, bits)
	}
	return bits, nil
}

// assembleStrips decompresses and concatenates the pixel strips in file
// order. Chunky files yield interleaved samples; planar files yield the
// planes back to back, which Canonicalize transposes later.
func assembleStrips(data []byte, entries map[uint16]ifdEntry, compression int) ([]byte, error) {
	offs, ok := entries[tagStripOffsets]
	if !ok {
		return nil, fmt.Errorf("%w: missing strip offsets", ErrUnsupportedLayout)
	}
	counts, ok := entries[tagStripCounts]
	if !ok || len(counts.values) != len(offs.values) {
		return nil, fmt.Errorf("%w: strip offset/count mismatch", ErrCorruptStream)
	}

	var out bytes.Buffer
	for i := range offs.values {
		lo := int(offs.values[i])
		n := int(counts.values[i])
		if lo < 0 || n < 0 || lo+n > len(data) {
			return nil, fmt.Errorf("%w: strip %d outside stream", ErrCorruptStream, i)
		}
		strip := data[lo : lo+n]
		if compression == compressionNone {
			out.Write(strip)
			continue
		}
		zr, err := zlib.NewReader(bytes.NewReader(strip))
		if err != nil {
			return nil, fmt.Errorf("%w: strip %d: %v", ErrCorruptStream, i, err)
		}
		if _, err := io.Copy(&out, zr); err != nil {
			zr.Close()
			return nil, fmt.Errorf("%w: strip %d: %v", ErrCorruptStream, i, err)
		}
		zr.Close()
	}
	return out.Bytes(), nil
}
