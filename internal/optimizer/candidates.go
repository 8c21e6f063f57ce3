package optimizer

import "fmt"

// PixelMode is a target pixel format for a trial encoding.
type PixelMode string

const (
	ModeRGB     PixelMode = "RGB"
	ModeRGBA    PixelMode = "RGBA"
	ModePalette PixelMode = "P"
)

// Candidate is one (pixel mode, palette size) pair to trial-encode.
// Colors is set only for ModePalette and bounds the palette entry count.
type Candidate struct {
	Mode   PixelMode
	Colors int
}

// Label is the reporting name for the candidate: the pixel mode, plus
// the palette size for indexed modes ("P-256").
func (c Candidate) Label() string {
	if c.Colors > 0 {
		return fmt.Sprintf("%s-%d", c.Mode, c.Colors)
	}
	return string(c.Mode)
}

// GenerateCandidates maps a classification to the ordered set of
// encodings worth racing. Deterministic; order fixes which of two
// equally-sized winners is reported first.
//
// Palette modes can carry one hard alpha cut-point but destroy gradient
// alpha, so partial-alpha images go straight to RGBA. UI assets skip
// palette candidates entirely: quantization artifacts are unacceptable
// on interface art.
func GenerateCandidates(a ImageAnalysis, ignoreTransparency bool) []Candidate {
	effective := a.Alpha
	if ignoreTransparency {
		effective = AlphaNone
	}

	var candidates []Candidate
	switch effective {
	case AlphaNone:
		candidates = append(candidates, Candidate{Mode: ModeRGB})
		if !a.IsUI {
			candidates = append(candidates,
				Candidate{Mode: ModePalette, Colors: 256},
				Candidate{Mode: ModePalette, Colors: 128})
		}
	case AlphaBinary:
		candidates = append(candidates, Candidate{Mode: ModeRGBA})
		if !a.IsUI {
			candidates = append(candidates,
				Candidate{Mode: ModePalette, Colors: 256},
				Candidate{Mode: ModePalette, Colors: 128})
		}
	case AlphaPartial:
		candidates = append(candidates, Candidate{Mode: ModeRGBA})
	}
	return candidates
}
