package terrazzo

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Region archives let a caller re-run placement with new parameters
// (the usual slider workflow) without paying for segmentation again:
// detection runs once, the region set is persisted, and later runs load
// it back against the same canonical image.
//
// Layout: magic, then a little-endian header (image dims, strategy,
// region count), then one zstd stream of fixed-layout region records.

const archiveMagic = "TRZR\n"

const (
	maxArchiveRegions = 1 << 20
	maxArchiveEdge    = 1 << 16
)

type archiveHeader struct {
	Width    uint32
	Height   uint32
	Strategy uint8
	Count    uint32
}

type recordHeader struct {
	MinX    int32
	MinY    int32
	Dx      uint32
	Dy      uint32
	HasMask uint8
}

// WriteRegions persists a detected region set for the given canonical
// image dimensions.
func WriteRegions(w io.Writer, width, height int, strategy Strategy, regions []Region) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(archiveMagic); err != nil {
		return err
	}
	hdr := archiveHeader{
		Width:    uint32(width),
		Height:   uint32(height),
		Strategy: uint8(strategy),
		Count:    uint32(len(regions)),
	}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return err
	}

	zw, err := zstd.NewWriter(bw)
	if err != nil {
		return err
	}
	for i := range regions {
		if err := writeRegion(zw, &regions[i]); err != nil {
			zw.Close()
			return fmt.Errorf("region %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

func writeRegion(w io.Writer, r *Region) error {
	rh := recordHeader{
		MinX: int32(r.Rect.Min.X),
		MinY: int32(r.Rect.Min.Y),
		Dx:   uint32(r.Rect.Dx()),
		Dy:   uint32(r.Rect.Dy()),
	}
	if r.Mask != nil {
		rh.HasMask = 1
	}
	if err := binary.Write(w, binary.LittleEndian, rh); err != nil {
		return err
	}
	if r.Mask != nil {
		mask := make([]byte, len(r.Mask))
		for i, m := range r.Mask {
			if m {
				mask[i] = 1
			}
		}
		if _, err := w.Write(mask); err != nil {
			return err
		}
	}
	_, err := w.Write(r.Pix)
	return err
}

// ReadRegions loads a region set written by WriteRegions, returning the
// canonical dimensions and strategy it was detected against.
func ReadRegions(r io.Reader) (width, height int, strategy Strategy, regions []Region, err error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(archiveMagic))
	if _, err = io.ReadFull(br, magic); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("archive magic: %w", err)
	}
	if string(magic) != archiveMagic {
		return 0, 0, 0, nil, fmt.Errorf("not a region archive (magic %q)", magic)
	}

	var hdr archiveHeader
	if err = binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("archive header: %w", err)
	}
	if hdr.Count > maxArchiveRegions {
		return 0, 0, 0, nil, fmt.Errorf("implausible region count %d", hdr.Count)
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	defer zr.Close()

	regions = make([]Region, 0, hdr.Count)
	for i := 0; i < int(hdr.Count); i++ {
		reg, rerr := readRegion(zr)
		if rerr != nil {
			return 0, 0, 0, nil, fmt.Errorf("region %d: %w", i, rerr)
		}
		regions = append(regions, reg)
	}
	return int(hdr.Width), int(hdr.Height), Strategy(hdr.Strategy), regions, nil
}

func readRegion(r io.Reader) (Region, error) {
	var rh recordHeader
	if err := binary.Read(r, binary.LittleEndian, &rh); err != nil {
		return Region{}, err
	}
	if rh.Dx == 0 || rh.Dy == 0 || rh.Dx > maxArchiveEdge || rh.Dy > maxArchiveEdge {
		return Region{}, fmt.Errorf("implausible bounds %dx%d", rh.Dx, rh.Dy)
	}

	area := int(rh.Dx) * int(rh.Dy)
	reg := Region{
		Rect: image.Rect(int(rh.MinX), int(rh.MinY), int(rh.MinX)+int(rh.Dx), int(rh.MinY)+int(rh.Dy)),
	}
	if rh.HasMask == 1 {
		raw := make([]byte, area)
		if _, err := io.ReadFull(r, raw); err != nil {
			return Region{}, err
		}
		reg.Mask = make([]bool, area)
		for i, b := range raw {
			reg.Mask[i] = b != 0
		}
	}
	reg.Pix = make([]uint8, area*3)
	if _, err := io.ReadFull(r, reg.Pix); err != nil {
		return Region{}, err
	}
	return reg, nil
}
