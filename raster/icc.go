package raster

import "fmt"

// ProfileInfo is the subset of an ICC header the decoder cares about.
// This is a header parse only, not a color-management engine.
type ProfileInfo struct {
	Class      string // profile/device class, e.g. "mntr", "prtr"
	ColorSpace string // data color space, e.g. "RGB ", "CMYK", "GRAY"
}

const iccHeaderSize = 128

// ParseProfileHeader extracts the class and color-space signatures from
// raw ICC profile bytes.
func ParseProfileHeader(data []byte) (ProfileInfo, error) {
	if len(data) < iccHeaderSize {
		return ProfileInfo{}, fmt.Errorf("icc: profile shorter than header (%d bytes)", len(data))
	}
	if string(data[36:40]) != "acsp" {
		return ProfileInfo{}, fmt.Errorf("icc: missing acsp signature")
	}
	return ProfileInfo{
		Class:      string(data[12:16]),
		ColorSpace: string(data[16:20]),
	}, nil
}
