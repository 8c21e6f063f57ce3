package optimizer

import (
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"

	apperrors "github.com/indpriyanshuraj/talvaar-image-optimizer/internal/errors"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/logger"
)

// UnboundedBaseline makes any successful candidate a winner.
const UnboundedBaseline int64 = math.MaxInt64

// RaceResult is the winning encoding of one race: the encoded bytes,
// the reporting label, and the byte size.
type RaceResult struct {
	Data  []byte
	Label string
	Size  int64
}

// RaceBest classifies the image, generates candidate encodings and
// trial-encodes each, keeping the single smallest result that strictly
// beats baseline. Losing buffers are dropped as soon as they are
// outsized; only the current champion is retained.
//
// When no candidate beats the baseline a mandatory-safe fallback is
// encoded unconditionally so some output always exists. Individual
// candidate failures are non-fatal; only a fallback failure is returned
// as an error.
func RaceBest(img image.Image, sourcePath string, baseline int64, level int, format Format, ignoreTransparency bool) (RaceResult, error) {
	log := logger.WithFields(logrus.Fields{"path": sourcePath, "format": format})
	log.WithField("baseline", baseline).Debug("Starting optimization race")

	// Ignoring transparency is a pixel-data contract, not just a
	// candidate-selection one: flatten here so a palette winner cannot
	// carry a transparent slot through to the output.
	if ignoreTransparency {
		img = FlattenOpaque(img)
	}

	analysis := Analyze(img, sourcePath)
	candidates := GenerateCandidates(analysis, ignoreTransparency)

	var best []byte
	bestSize := baseline
	bestLabel := ""

	for _, c := range candidates {
		data, err := EncodeCandidate(img, c.Mode, c.Colors, level, format)
		if err != nil {
			log.WithError(apperrors.NewCandidateError(sourcePath, c.Label()+"/"+string(format), err)).
				Warn("Candidate dropped from race")
			continue
		}
		if int64(len(data)) < bestSize {
			best = data
			bestSize = int64(len(data))
			bestLabel = c.Label()
			log.WithFields(logrus.Fields{"mode": bestLabel, "size": bestSize}).Debug("New champion")
		}
	}

	if best == nil {
		safe := ModeRGBA
		if ignoreTransparency || analysis.Alpha == AlphaNone {
			safe = ModeRGB
		}
		data, err := EncodeCandidate(img, safe, 0, level, format)
		if err != nil {
			return RaceResult{}, apperrors.NewFallbackError(sourcePath, string(safe)+"/"+string(format), err)
		}
		label := fmt.Sprintf("%s (Fallback)", safe)
		log.WithField("mode", label).Debug("No improvement found, using fallback")
		return RaceResult{Data: data, Label: label, Size: int64(len(data))}, nil
	}

	return RaceResult{Data: best, Label: bestLabel, Size: bestSize}, nil
}
