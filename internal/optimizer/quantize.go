package optimizer

import (
	"image"
	"image/color"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// opaqueCut separates "transparent" from "opaque" when collapsing alpha
// into a single palette cut-point. Binary-alpha sources only ever carry
// 0 and 255, so the cut never rewrites their values.
const opaqueCut = 128

type colorEntry struct {
	r, g, b uint8
	count   int
}

// quantizePalette reduces src to an indexed image with at most maxColors
// palette entries using median-cut. Dithering is deliberately absent:
// the output must be reproducible and quantization artifacts must stay
// visible rather than being masked.
//
// When any pixel falls below the opaque cut, one palette slot is
// reserved for full transparency, so a binary-alpha source round-trips
// without gaining alpha values outside {0, 255}.
func quantizePalette(src *image.NRGBA, maxColors int) *image.Paletted {
	if maxColors < 2 {
		maxColors = 2
	}

	b := src.Bounds()
	counts := make(map[uint32]int)
	hasTransparent := false
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := src.Pix[(y-b.Min.Y)*src.Stride : (y-b.Min.Y)*src.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			if row[x+3] < opaqueCut {
				hasTransparent = true
				continue
			}
			key := uint32(row[x])<<16 | uint32(row[x+1])<<8 | uint32(row[x+2])
			counts[key]++
		}
	}

	budget := maxColors
	if hasTransparent {
		budget--
	}

	entries := make([]colorEntry, 0, len(counts))
	for key, n := range counts {
		entries = append(entries, colorEntry{
			r:     uint8(key >> 16),
			g:     uint8(key >> 8),
			b:     uint8(key),
			count: n,
		})
	}
	// Map iteration order is randomized; sort for a deterministic cut.
	sort.Slice(entries, func(i, j int) bool {
		ki := uint32(entries[i].r)<<16 | uint32(entries[i].g)<<8 | uint32(entries[i].b)
		kj := uint32(entries[j].r)<<16 | uint32(entries[j].g)<<8 | uint32(entries[j].b)
		return ki < kj
	})

	boxes := medianCut(entries, budget)

	palette := make(color.Palette, 0, maxColors)
	for _, box := range boxes {
		palette = append(palette, averageColor(box))
	}
	transparentIndex := -1
	if hasTransparent {
		transparentIndex = len(palette)
		palette = append(palette, color.NRGBA{})
	}

	return mapToPalette(src, palette, transparentIndex)
}

// medianCut splits the color list into at most budget boxes, always
// splitting the box with the widest channel range at its weighted
// median. Box selection ties break on the lower index so the result is
// stable.
func medianCut(entries []colorEntry, budget int) [][]colorEntry {
	if len(entries) == 0 {
		return nil
	}
	boxes := [][]colorEntry{entries}
	for len(boxes) < budget {
		widest, channel := -1, 0
		widestRange := 0
		for i, box := range boxes {
			if len(box) < 2 {
				continue
			}
			ch, rng := widestChannel(box)
			if rng > widestRange {
				widest, channel, widestRange = i, ch, rng
			}
		}
		if widest < 0 {
			break
		}
		lo, hi := splitBox(boxes[widest], channel)
		boxes[widest] = lo
		boxes = append(boxes, hi)
	}
	return boxes
}

func widestChannel(box []colorEntry) (channel, rng int) {
	var min, max [3]int
	for i := range min {
		min[i] = 256
		max[i] = -1
	}
	for _, e := range box {
		for i, v := range [3]int{int(e.r), int(e.g), int(e.b)} {
			if v < min[i] {
				min[i] = v
			}
			if v > max[i] {
				max[i] = v
			}
		}
	}
	for i := 0; i < 3; i++ {
		if max[i]-min[i] > rng {
			channel, rng = i, max[i]-min[i]
		}
	}
	return channel, rng
}

func splitBox(box []colorEntry, channel int) (lo, hi []colorEntry) {
	sort.SliceStable(box, func(i, j int) bool {
		return channelValue(box[i], channel) < channelValue(box[j], channel)
	})
	total := 0
	for _, e := range box {
		total += e.count
	}
	acc := 0
	cut := len(box) - 1
	for i, e := range box {
		acc += e.count
		if acc*2 >= total {
			cut = i + 1
			break
		}
	}
	if cut >= len(box) {
		cut = len(box) - 1
	}
	if cut < 1 {
		cut = 1
	}
	return box[:cut], box[cut:]
}

func channelValue(e colorEntry, channel int) int {
	switch channel {
	case 0:
		return int(e.r)
	case 1:
		return int(e.g)
	default:
		return int(e.b)
	}
}

// averageColor is the pixel-count-weighted mean of a box.
func averageColor(box []colorEntry) color.NRGBA {
	if len(box) == 0 {
		return color.NRGBA{A: 255}
	}
	var r, g, b, n uint64
	for _, e := range box {
		w := uint64(e.count)
		r += uint64(e.r) * w
		g += uint64(e.g) * w
		b += uint64(e.b) * w
		n += w
	}
	if n == 0 {
		n = 1
	}
	return color.NRGBA{
		R: uint8(r / n),
		G: uint8(g / n),
		B: uint8(b / n),
		A: 255,
	}
}

// mapToPalette assigns every pixel its nearest palette entry. Distance
// is computed in RGB space via go-colorful; a per-color cache keeps the
// mapping linear in distinct colors rather than pixels.
func mapToPalette(src *image.NRGBA, palette color.Palette, transparentIndex int) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette)

	opaque := make([]colorful.Color, len(palette))
	for i, p := range palette {
		c := p.(color.NRGBA)
		opaque[i] = colorful.Color{
			R: float64(c.R) / 255,
			G: float64(c.G) / 255,
			B: float64(c.B) / 255,
		}
	}

	cache := make(map[uint32]uint8)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := src.Pix[(y-b.Min.Y)*src.Stride : (y-b.Min.Y)*src.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			if transparentIndex >= 0 && row[x+3] < opaqueCut {
				dst.SetColorIndex(x/4, y-b.Min.Y, uint8(transparentIndex))
				continue
			}
			key := uint32(row[x])<<16 | uint32(row[x+1])<<8 | uint32(row[x+2])
			idx, ok := cache[key]
			if !ok {
				idx = nearestEntry(opaque, transparentIndex, row[x], row[x+1], row[x+2])
				cache[key] = idx
			}
			dst.SetColorIndex(x/4, y-b.Min.Y, idx)
		}
	}
	return dst
}

func nearestEntry(palette []colorful.Color, transparentIndex int, r, g, b uint8) uint8 {
	px := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	best := 0
	bestDist := -1.0
	for i, p := range palette {
		if i == transparentIndex {
			continue
		}
		d := px.DistanceRgb(p)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return uint8(best)
}
