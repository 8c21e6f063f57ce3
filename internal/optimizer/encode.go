package optimizer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/xfmoulet/qoi"

	apperrors "github.com/indpriyanshuraj/talvaar-image-optimizer/internal/errors"
)

// Format is a target container format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWEBP Format = "webp"
	FormatQOI  Format = "qoi"
)

// ParseFormat normalizes a user-supplied container name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png", "":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWEBP, nil
	case "qoi":
		return FormatQOI, nil
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown output format %q", s), nil)
	}
}

// Ext returns the output filename extension for the format.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// Lossless reports whether the container preserves pixel data exactly.
func (f Format) Lossless() bool {
	return f == FormatPNG || f == FormatQOI
}

// QualityFor maps a 0-9 compression level onto a lossy quality percent:
// 85 at level 0, otherwise max(10, 100-level*10).
func QualityFor(level int) int {
	if level == 0 {
		return 85
	}
	q := 100 - level*10
	if q < 10 {
		q = 10
	}
	return q
}

// pngCompression buckets the 0-9 level onto the stdlib encoder's four
// levels; 7-9 request maximal lossless recompression.
func pngCompression(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// EncodeCandidate converts img to the requested pixel mode and encodes
// it into format, returning the encoded bytes. Failures are returned as
// errors and are expected to be non-fatal for the caller: a losing
// candidate is simply dropped from the race.
func EncodeCandidate(img image.Image, mode PixelMode, colors, level int, format Format) ([]byte, error) {
	src := asNRGBA(img)

	var out image.Image
	switch mode {
	case ModeRGB:
		out = DropAlpha(src)
	case ModeRGBA:
		out = src
	case ModePalette:
		c := colors
		if c <= 0 {
			c = 256
		}
		out = quantizePalette(src, c)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported pixel mode %q", mode), nil)
	}

	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: pngCompression(level)}
		if err := enc.Encode(&buf, out); err != nil {
			return nil, err
		}
	case FormatJPEG:
		// JPEG cannot carry alpha; flatten unconditionally.
		flat := DropAlpha(asNRGBA(out))
		if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: QualityFor(level)}); err != nil {
			return nil, err
		}
	case FormatWEBP:
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(QualityFor(level)))
		if err != nil {
			return nil, err
		}
		if err := webp.Encode(&buf, asNRGBA(out), opts); err != nil {
			return nil, err
		}
	case FormatQOI:
		if err := qoi.Encode(&buf, asNRGBA(out)); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported container format %q", format), nil)
	}

	return buf.Bytes(), nil
}

// FlattenOpaque coerces any image to a fully opaque NRGBA copy.
// Callers honoring an ignore-transparency request flatten before
// picking a pixel mode so even palette output carries no alpha.
func FlattenOpaque(img image.Image) *image.NRGBA {
	return DropAlpha(asNRGBA(img))
}

// DropAlpha discards the alpha channel, keeping the raw color channels
// untouched (no background compositing).
func DropAlpha(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		dstRow := out.Pix[y*out.Stride : y*out.Stride+b.Dx()*4]
		for x := 0; x < len(srcRow); x += 4 {
			dstRow[x] = srcRow[x]
			dstRow[x+1] = srcRow[x+1]
			dstRow[x+2] = srcRow[x+2]
			dstRow[x+3] = 255
		}
	}
	return out
}
