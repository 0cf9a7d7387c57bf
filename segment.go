package terrazzo

import (
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/gift"
	"github.com/veinstone/terrazzo/raster"
	"gonum.org/v1/gonum/stat"
)

// Region is a relocatable flake: a bounding box in the canonical image,
// an optional per-pixel membership mask (nil means the full box belongs
// to the flake), and a snapshot of the source pixels under the box.
// Regions are immutable once detected; the snapshot is always taken from
// the canonical image, never from a partially composed output.
type Region struct {
	Rect image.Rectangle
	Mask []bool  // len Dx*Dy when present
	Pix  []uint8 // len Dx*Dy*3
}

// Area counts the pixels the flake actually claims.
func (r *Region) Area() int {
	if r.Mask == nil {
		return r.Rect.Dx() * r.Rect.Dy()
	}
	n := 0
	for _, m := range r.Mask {
		if m {
			n++
		}
	}
	return n
}

// member reports whether box-local index i belongs to the flake.
func (r *Region) member(i int) bool {
	return r.Mask == nil || r.Mask[i]
}

func snapshotRegion(img *raster.RGB8, rect image.Rectangle, mask []bool) Region {
	w := rect.Dx()
	pix := make([]uint8, w*rect.Dy()*3)
	for y := 0; y < rect.Dy(); y++ {
		src := img.PixOffset(rect.Min.X, rect.Min.Y+y)
		copy(pix[y*w*3:(y+1)*w*3], img.Pix[src:src+w*3])
	}
	return Region{Rect: rect, Mask: mask, Pix: pix}
}

// ============ GRID-TILE VARIANCE SCAN ============

// segmentGrid slides a tile of edge tileSize over the image with the
// intensity-derived stride and keeps every tile whose summed per-channel
// variance clears the sensitivity threshold. Tiles may overlap; each
// snapshot still comes from the untouched canonical image. Rows of tiles
// are scanned in parallel and merged in scan order, so the region list
// is identical regardless of worker count.
func segmentGrid(img *raster.RGB8, opt Options) []Region {
	size := opt.tileSize()
	stride := opt.scanStride()
	threshold := opt.varianceThreshold()
	if size <= 0 || size > img.W || size > img.H {
		return nil
	}

	var ys, xs []int
	for y := 0; y+size <= img.H; y += stride {
		ys = append(ys, y)
	}
	for x := 0; x+size <= img.W; x += stride {
		xs = append(xs, x)
	}

	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(1, min(workers, len(ys)))

	rows := make([][]Region, len(ys))
	rowCh := make(chan int)
	var wg sync.WaitGroup
	for _i := 0; _i < workers; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var chans [3][]float64
			for c := range chans {
				chans[c] = make([]float64, size*size)
			}
			for yi := range rowCh {
				y := ys[yi]
				var row []Region
				for _, x := range xs {
					if tileVariance(img, x, y, size, &chans) > threshold {
						row = append(row, snapshotRegion(img, image.Rect(x, y, x+size, y+size), nil))
					}
				}
				rows[yi] = row
			}
		}()
	}
	for yi := range ys {
		rowCh <- yi
	}
	close(rowCh)
	wg.Wait()

	var regions []Region
	for _, row := range rows {
		regions = append(regions, row...)
	}
	return regions
}

// tileVariance sums the population variance of each color channel over
// one tile. The scratch buffers are owned by the calling worker.
func tileVariance(img *raster.RGB8, x0, y0, size int, chans *[3][]float64) float64 {
	n := 0
	for y := y0; y < y0+size; y++ {
		off := img.PixOffset(x0, y)
		for _i := 0; _i < size; _i++ {
			chans[0][n] = float64(img.Pix[off])
			chans[1][n] = float64(img.Pix[off+1])
			chans[2][n] = float64(img.Pix[off+2])
			off += 3
			n++
		}
	}
	sum := 0.0
	for c := range chans {
		sum += stat.PopVariance(chans[c][:n], nil)
	}
	return sum
}

// ============ CONNECTED COMPONENTS ============

const componentMinArea = 100

// segmentComponents extracts flakes as connected components of the
// luminance map: blur, threshold against the global mean, open
// morphologically to drop speckle, then label 4-connected components.
// Components outside the size window are discarded; survivors carry
// exact per-pixel masks.
func segmentComponents(img *raster.RGB8, opt Options) []Region {
	w, h := img.W, img.H
	gray := luminanceMap(img)

	smooth := image.NewGray(gray.Bounds())
	gift.New(gift.GaussianBlur(1.5)).Draw(smooth, gray)

	mean := 0.0
	for _, v := range smooth.Pix {
		mean += float64(v)
	}
	mean /= float64(len(smooth.Pix))

	// Higher sensitivity narrows the band around the mean that still
	// counts as background.
	tol := 10 + 90*(1-opt.ColorSensitivity)
	binary := image.NewGray(gray.Bounds())
	for i, v := range smooth.Pix {
		d := float64(v) - mean
		if d < 0 {
			d = -d
		}
		if d > tol {
			binary.Pix[i] = 255
		}
	}

	cleaned := image.NewGray(binary.Bounds())
	gift.New(gift.Minimum(3, true), gift.Maximum(3, true)).Draw(cleaned, binary)

	minArea := int(componentMinArea * opt.FlakeSizeRange)
	maxArea := int(float64(w*h) / 20 * opt.FlakeSizeRange)
	return labelComponents(img, cleaned, minArea, maxArea)
}

func luminanceMap(img *raster.RGB8) *image.Gray {
	gray := image.NewGray(img.Bounds())
	for i := 0; i < img.W*img.H; i++ {
		r := uint32(img.Pix[i*3])
		g := uint32(img.Pix[i*3+1])
		b := uint32(img.Pix[i*3+2])
		gray.Pix[i] = uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
	}
	return gray
}

// labelComponents flood-fills 4-connected foreground runs and keeps the
// components whose area lies strictly inside (minArea, maxArea).
func labelComponents(img *raster.RGB8, fg *image.Gray, minArea, maxArea int) []Region {
	w, h := img.W, img.H
	dx4 := []int{-1, 0, 1, 0}
	dy4 := []int{0, -1, 0, 1}

	visited := make([]bool, w*h)
	var regions []Region
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			start := y*w + x
			if visited[start] || fg.Pix[start] < 128 {
				continue
			}

			elems := make([]int, 1, 64)
			elems[0] = start
			visited[start] = true
			minX, maxX, minY, maxY := x, x, y, y
			for c := 0; c < len(elems); c++ {
				cur := elems[c]
				cx := cur % w
				cy := cur / w
				for k := 0; k < 4; k++ {
					nx, ny := cx+dx4[k], cy+dy4[k]
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					nIdx := ny*w + nx
					if visited[nIdx] || fg.Pix[nIdx] < 128 {
						continue
					}
					visited[nIdx] = true
					elems = append(elems, nIdx)
				}
				minX = min(minX, cx)
				maxX = max(maxX, cx)
				minY = min(minY, cy)
				maxY = max(maxY, cy)
			}

			if len(elems) <= minArea || len(elems) >= maxArea {
				continue
			}

			rect := image.Rect(minX, minY, maxX+1, maxY+1)
			bw := rect.Dx()
			mask := make([]bool, bw*rect.Dy())
			for _, e := range elems {
				ex := e%w - minX
				ey := e/w - minY
				mask[ey*bw+ex] = true
			}
			region := snapshotRegion(img, rect, mask)
			regions = append(regions, region)
		}
	}
	return regions
}
