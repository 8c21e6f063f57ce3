package optimizer

import (
	"image"
	"image/draw"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/logger"
)

// AlphaType classifies how much transparency precision an image's alpha
// channel requires to preserve visually.
type AlphaType string

const (
	// AlphaNone means every pixel is fully opaque.
	AlphaNone AlphaType = "none"
	// AlphaBinary means the alpha channel only takes the values 0 and
	// 255, the hard-edged cutout pattern of foliage and item sprites.
	AlphaBinary AlphaType = "binary"
	// AlphaPartial means at least one alpha value lies strictly between
	// 0 and 255 (glass, ice, gradients).
	AlphaPartial AlphaType = "partial"
)

// Kernel names a resampling kernel for resizing.
type Kernel string

const (
	KernelNearest  Kernel = "nearest"
	KernelBilinear Kernel = "bilinear"
	KernelBicubic  Kernel = "bicubic"
	KernelMitchell Kernel = "mitchell"
	KernelLanczos  Kernel = "lanczos"
)

// ParseKernel normalizes a user-supplied kernel name; "auto" and
// unknown names are rejected so callers resolve them explicitly.
func ParseKernel(s string) (Kernel, bool) {
	switch Kernel(strings.ToLower(strings.TrimSpace(s))) {
	case KernelNearest:
		return KernelNearest, true
	case KernelBilinear:
		return KernelBilinear, true
	case KernelBicubic:
		return KernelBicubic, true
	case KernelMitchell:
		return KernelMitchell, true
	case KernelLanczos:
		return KernelLanczos, true
	default:
		return "", false
	}
}

// ImageAnalysis is the result of classifying one decoded image. Created
// fresh per call; value type, copied freely.
type ImageAnalysis struct {
	ColorMode       string
	Alpha           AlphaType
	IsUI            bool
	HasTransparency bool
	SuggestedKernel Kernel
}

// distinctCap bounds the distinct-value enumeration: past 257 distinct
// values the binary/partial and low-color distinctions are already settled.
const distinctCap = 257

// uiPathSegments are folder names that mark interface art. Matching is
// segment-exact: a file inside a folder literally named "ui" counts, a
// file whose name merely contains "ui" does not.
var uiPathSegments = map[string]struct{}{
	"ui":       {},
	"gui":      {},
	"colormap": {},
	"font":     {},
}

// IsUITexture reports whether the path places the image under a UI
// folder. Both path separator conventions are treated equivalently.
func IsUITexture(path string) bool {
	p := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	for _, seg := range strings.Split(p, "/") {
		if _, ok := uiPathSegments[seg]; ok {
			return true
		}
	}
	return false
}

// Analyze inspects pixel content and the source path to decide how the
// image can be optimized. Pure: neither the image nor any shared state
// is mutated.
func Analyze(img image.Image, sourcePath string) ImageAnalysis {
	isUI := IsUITexture(sourcePath)

	rgba := asNRGBA(img)

	alphaType := AlphaNone
	hasTransparency := false

	minAlpha, distinct := alphaProfile(rgba)
	if minAlpha < 255 {
		hasTransparency = true
		alphaType = AlphaPartial
		if len(distinct) <= 2 {
			binary := true
			for _, v := range distinct {
				if v != 0 && v != 255 {
					binary = false
					break
				}
			}
			if binary {
				alphaType = AlphaBinary
			}
		}
	}

	var kernel Kernel
	switch {
	case isUI, alphaType == AlphaBinary:
		// Hard edges must survive resizing; smoothing kernels fringe
		// the alpha boundary.
		kernel = KernelNearest
	case countDistinctColors(rgba, distinctCap) <= 256:
		// Low color count: pixel-art or flat-color asset.
		kernel = KernelNearest
	default:
		kernel = KernelLanczos
	}

	logger.WithFields(logrus.Fields{
		"path":  sourcePath,
		"alpha": alphaType,
		"is_ui": isUI,
	}).Debug("Image analyzed")

	return ImageAnalysis{
		ColorMode:       colorModeOf(img),
		Alpha:           alphaType,
		IsUI:            isUI,
		HasTransparency: hasTransparency,
		SuggestedKernel: kernel,
	}
}

// asNRGBA coerces img to a non-premultiplied 4-channel representation.
// The input is never mutated; an *image.NRGBA passes through as-is since
// all downstream use is read-only.
func asNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Bounds(), img, b.Min, draw.Src)
	return n
}

// alphaProfile returns the minimum alpha value and the sorted list of
// distinct alpha values present.
func alphaProfile(n *image.NRGBA) (uint8, []uint8) {
	var seen [256]bool
	minAlpha := uint8(255)

	b := n.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := n.Pix[(y-b.Min.Y)*n.Stride : (y-b.Min.Y)*n.Stride+b.Dx()*4]
		for x := 3; x < len(row); x += 4 {
			a := row[x]
			seen[a] = true
			if a < minAlpha {
				minAlpha = a
			}
		}
	}

	distinct := make([]uint8, 0, 4)
	for v := 0; v < 256; v++ {
		if seen[v] {
			distinct = append(distinct, uint8(v))
		}
	}
	return minAlpha, distinct
}

// countDistinctColors counts distinct RGBA values up to cap; once the
// cap is exceeded the exact count no longer matters and the scan stops.
func countDistinctColors(n *image.NRGBA, cap int) int {
	seen := make(map[uint32]struct{}, cap)
	b := n.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := n.Pix[(y-b.Min.Y)*n.Stride : (y-b.Min.Y)*n.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			key := uint32(row[x])<<24 | uint32(row[x+1])<<16 | uint32(row[x+2])<<8 | uint32(row[x+3])
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				if len(seen) >= cap {
					return len(seen)
				}
			}
		}
	}
	return len(seen)
}

// colorModeOf labels the source pixel format for reporting.
func colorModeOf(img image.Image) string {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return "RGBA"
	case *image.RGBA, *image.RGBA64:
		return "RGBA-pre"
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.Paletted:
		return "P"
	case *image.YCbCr:
		return "YCbCr"
	case *image.CMYK:
		return "CMYK"
	default:
		return "RGB"
	}
}
