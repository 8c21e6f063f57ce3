package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/indpriyanshuraj/talvaar-image-optimizer/internal/errors"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/optimizer"
)

// SaveMode selects how pixels are stored in the output.
type SaveMode string

const (
	// ModeAuto races every safe candidate and keeps the smallest.
	ModeAuto SaveMode = "auto"
	// ModeRGBA forces full-fidelity truecolor with alpha.
	ModeRGBA SaveMode = "rgba"
	// ModePalette forces 256-color palette quantization.
	ModePalette SaveMode = "palette"
	// ModeRGB forces truecolor with the alpha channel dropped.
	ModeRGB SaveMode = "rgb"
)

// ConflictPolicy decides what happens when the output path is taken.
type ConflictPolicy string

const (
	// Overwrite replaces the existing file.
	Overwrite ConflictPolicy = "overwrite"
	// KeepBoth writes under a numbered sibling name instead.
	KeepBoth ConflictPolicy = "keep_both"
)

// ResizeSpec describes a requested output size, either absolute pixels
// or a percentage of the source dimensions. A pixel spec with Height 0
// preserves the source aspect ratio.
type ResizeSpec struct {
	Width      int
	Height     int
	Percentage float64
}

var (
	pixelSpec      = regexp.MustCompile(`^(\d+)x(\d+)$`)
	percentageSpec = regexp.MustCompile(`^(\d+(?:\.\d+)?)%$`)
)

// ParseResizeSpec parses "WxH" or "N%". An empty spec returns nil,
// meaning no resizing.
func ParseResizeSpec(spec string) (*ResizeSpec, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if spec == "" {
		return nil, nil
	}
	if m := pixelSpec.FindStringSubmatch(spec); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w == 0 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("resize spec %q has a zero width", spec), nil)
		}
		return &ResizeSpec{Width: w, Height: h}, nil
	}
	if m := percentageSpec.FindStringSubmatch(spec); m != nil {
		pct, _ := strconv.ParseFloat(m[1], 64)
		if pct <= 0 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("resize spec %q must be positive", spec), nil)
		}
		return &ResizeSpec{Percentage: pct}, nil
	}
	return nil, apperrors.NewValidationError(
		fmt.Sprintf("invalid resize spec %q (expected WxH or N%%)", spec), nil)
}

// Options carry the per-batch save settings shared by every image.
type Options struct {
	Mode               SaveMode
	Format             optimizer.Format
	Compression        int
	Conflict           ConflictPolicy
	IgnoreTransparency bool
	Prefix             string
	Suffix             string
	// Algorithm is a kernel name or "auto" for content-based choice.
	Algorithm string
	Resize    *ResizeSpec
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Mode:        ModeAuto,
		Format:      optimizer.FormatPNG,
		Compression: 6,
		Conflict:    Overwrite,
		Algorithm:   "auto",
	}
}

// WithMode returns a copy with the save mode replaced.
func (o Options) WithMode(mode SaveMode) Options {
	o.Mode = mode
	return o
}

// WithResize returns a copy with the resize spec replaced.
func (o Options) WithResize(spec *ResizeSpec) Options {
	o.Resize = spec
	return o
}
