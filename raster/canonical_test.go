package raster

import "testing"

func planeBuf(w, h, channels, bits int, photometric Photometric, samples []uint16) *PlaneBuffer {
	return &PlaneBuffer{
		Width:         w,
		Height:        h,
		Channels:      channels,
		BitsPerSample: bits,
		Photometric:   photometric,
		Samples:       samples,
	}
}

func TestCanonicalizeCMYKAllWhite(t *testing.T) {
	w, h := 4, 3
	samples := make([]uint16, w*h*4) // C=M=Y=K=0
	img, err := planeBuf(w, h, 4, 8, PhotometricSeparated, samples).Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range img.Pix {
		if v != 255 {
			t.Fatalf("sample %d = %d, want 255", i, v)
		}
	}
}

func TestCanonicalizeCMYKAllBlack(t *testing.T) {
	w, h := 4, 3
	samples := make([]uint16, w*h*4)
	for i := 0; i < w*h; i++ {
		samples[i*4+3] = 255 // solid key plane
	}
	img, err := planeBuf(w, h, 4, 8, PhotometricSeparated, samples).Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range img.Pix {
		if v != 0 {
			t.Fatalf("sample %d = %d, want 0", i, v)
		}
	}
}

func TestCanonicalizeCMYK16BitKey(t *testing.T) {
	w, h := 2, 2
	samples := make([]uint16, w*h*4)
	for i := 0; i < w*h; i++ {
		samples[i*4+3] = 65535
	}
	img, err := planeBuf(w, h, 4, 16, PhotometricSeparated, samples).Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range img.Pix {
		if v != 0 {
			t.Fatalf("sample %d = %d, want 0", i, v)
		}
	}
}

func TestCanonicalizeSpotPlanesDropped(t *testing.T) {
	w, h := 3, 3
	base := make([]uint16, w*h*4)
	spot := make([]uint16, w*h*6)
	for i := 0; i < w*h; i++ {
		base[i*4] = uint16(40 * (i % 5))
		base[i*4+1] = uint16(30 * (i % 7))
		base[i*4+2] = uint16(20 * (i % 9))
		base[i*4+3] = uint16(10 * (i % 4))
		copy(spot[i*6:], base[i*4:i*4+4])
		spot[i*6+4] = 0xBEEF & 0xFF // spot ink planes, must not leak into RGB
		spot[i*6+5] = 77
	}

	want, err := planeBuf(w, h, 4, 8, PhotometricSeparated, base).Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	got, err := planeBuf(w, h, 6, 8, PhotometricSeparated, spot).Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	for i := range want.Pix {
		if want.Pix[i] != got.Pix[i] {
			t.Fatalf("sample %d: 6-plane %d != 4-plane %d", i, got.Pix[i], want.Pix[i])
		}
	}
}

func TestCanonicalizeGrayReplicates(t *testing.T) {
	w, h := 4, 2
	samples := make([]uint16, w*h)
	for i := range samples {
		samples[i] = uint16(i * 30)
	}
	img, err := planeBuf(w, h, 1, 8, PhotometricGray, samples).Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < w*h; i++ {
		v := uint8(samples[i])
		if img.Pix[i*3] != v || img.Pix[i*3+1] != v || img.Pix[i*3+2] != v {
			t.Fatalf("pixel %d: got (%d,%d,%d), want gray %d",
				i, img.Pix[i*3], img.Pix[i*3+1], img.Pix[i*3+2], v)
		}
	}
}

func TestCanonicalizeGrayAlpha(t *testing.T) {
	w, h := 2, 2
	samples := []uint16{10, 255, 20, 255, 30, 255, 40, 255}
	img, err := planeBuf(w, h, 2, 8, PhotometricGray, samples).Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < w*h; i++ {
		v := uint8(samples[i*2])
		if img.Pix[i*3] != v {
			t.Fatalf("pixel %d: got %d, want %d", i, img.Pix[i*3], v)
		}
	}
}

func TestCanonicalizeRGBDirectCopy(t *testing.T) {
	w, h := 2, 2
	samples := []uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	img, err := planeBuf(w, h, 3, 8, PhotometricRGB, samples).Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	for i := range img.Pix {
		if img.Pix[i] != uint8(samples[i]) {
			t.Fatalf("sample %d = %d, want %d", i, img.Pix[i], samples[i])
		}
	}
}

func TestCanonicalizePlanarTranspose(t *testing.T) {
	w, h := 3, 2
	pixels := w * h
	samples := make([]uint16, pixels*3)
	for i := 0; i < pixels; i++ {
		samples[i] = 10          // red plane
		samples[pixels+i] = 20   // green plane
		samples[2*pixels+i] = 30 // blue plane
	}
	buf := planeBuf(w, h, 3, 8, PhotometricRGB, samples)
	buf.Planar = true
	img, err := buf.Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < pixels; i++ {
		if img.Pix[i*3] != 10 || img.Pix[i*3+1] != 20 || img.Pix[i*3+2] != 30 {
			t.Fatalf("pixel %d: got (%d,%d,%d), want (10,20,30)",
				i, img.Pix[i*3], img.Pix[i*3+1], img.Pix[i*3+2])
		}
	}
}

func TestCanonicalizeUnresolvable(t *testing.T) {
	buf := planeBuf(2, 2, 2, 8, PhotometricUnknown, make([]uint16, 8))
	if _, err := buf.Canonicalize(); err == nil {
		t.Fatal("expected layout error for 2-channel unknown hint")
	}
}

// iccHeader builds a minimal valid ICC profile header with the given
// class and color-space signatures.
func iccHeader(t *testing.T, class, space string) []byte {
	t.Helper()
	hdr := make([]byte, iccHeaderSize)
	copy(hdr[12:16], class)
	copy(hdr[16:20], space)
	copy(hdr[36:40], "acsp")
	return hdr
}

// A two-plane buffer is unresolvable on its own, but a GRAY profile
// signature settles it as gray plus alpha.
func TestCanonicalizeICCGrayHint(t *testing.T) {
	samples := []uint16{10, 255, 20, 255, 30, 255, 40, 255}
	buf := planeBuf(2, 2, 2, 8, PhotometricUnknown, samples)
	buf.ICC = iccHeader(t, "mntr", "GRAY")
	img, err := buf.Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		v := uint8(samples[i*2])
		if img.Pix[i*3] != v || img.Pix[i*3+1] != v || img.Pix[i*3+2] != v {
			t.Fatalf("pixel %d: got %d, want gray %d", i, img.Pix[i*3], v)
		}
	}
}

func TestCanonicalizeICCCMYKHint(t *testing.T) {
	w, h := 2, 2
	buf := planeBuf(w, h, 4, 8, PhotometricUnknown, make([]uint16, w*h*4))
	buf.ICC = iccHeader(t, "prtr", "CMYK")
	img, err := buf.Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range img.Pix {
		if v != 255 {
			t.Fatalf("sample %d = %d, want 255", i, v)
		}
	}
}

func TestParseProfileHeader(t *testing.T) {
	hdr := iccHeader(t, "prtr", "CMYK")
	info, err := ParseProfileHeader(hdr)
	if err != nil {
		t.Fatal(err)
	}
	if info.ColorSpace != "CMYK" || info.Class != "prtr" {
		t.Fatalf("got %+v", info)
	}

	if _, err := ParseProfileHeader(hdr[:64]); err == nil {
		t.Fatal("expected error for truncated profile")
	}
}
