// Package pipeline drives the per-image flow: read, decode, normalize,
// resize, pick an encoding, and store the result.
package pipeline

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/indpriyanshuraj/talvaar-image-optimizer/internal/errors"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/logger"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/meta"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/observer"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/optimizer"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/storage"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/pkg/models"
)

// Job is one image to process. Root anchors the relative directory
// that gets mirrored into the output; a Root equal to SourcePath (or
// empty) flattens the image to the output root.
type Job struct {
	SourcePath string
	Root       string
}

// Processor runs the optimization flow for single images.
type Processor struct {
	sink      storage.Sink
	publisher observer.Subject
	opts      Options
}

// NewProcessor wires a processor. A nil publisher disables events.
func NewProcessor(sink storage.Sink, publisher observer.Subject, opts Options) *Processor {
	if publisher == nil {
		publisher = observer.NewEventPublisher()
	}
	return &Processor{sink: sink, publisher: publisher, opts: opts}
}

// Process optimizes one image end to end and returns its result row.
// All failures are captured in the result; the error return mirrors
// result.Error for callers that branch on it.
func (p *Processor) Process(ctx context.Context, job Job) (models.OptimizeResult, error) {
	start := time.Now()
	result := models.OptimizeResult{SourcePath: job.SourcePath}

	p.publisher.NotifyObservers(ctx, observer.OptimizeEvent{
		EventType:  observer.OptimizeStarted,
		Timestamp:  start,
		SourcePath: job.SourcePath,
	})

	res, err := p.process(ctx, job, &result)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		p.publisher.NotifyObservers(ctx, observer.OptimizeEvent{
			EventType:      observer.OptimizeFailed,
			Timestamp:      time.Now(),
			SourcePath:     job.SourcePath,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return result, err
	}

	result = res
	result.Success = true
	p.publisher.NotifyObservers(ctx, observer.OptimizeEvent{
		EventType:      observer.OptimizeCompleted,
		Timestamp:      time.Now(),
		SourcePath:     job.SourcePath,
		Mode:           result.Mode,
		OriginalSize:   result.OriginalSize,
		OptimizedSize:  result.NewSize,
		ProcessingTime: time.Since(start),
		Success:        true,
	})
	return result, nil
}

func (p *Processor) process(ctx context.Context, job Job, seed *models.OptimizeResult) (models.OptimizeResult, error) {
	result := *seed

	raw, err := os.ReadFile(job.SourcePath)
	if err != nil {
		return result, apperrors.NewIOError(job.SourcePath, err)
	}
	result.OriginalSize = int64(len(raw))

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return result, apperrors.NewDecodeError(job.SourcePath, err)
	}
	img = meta.Normalize(img, raw)

	rel, err := p.outputRel(ctx, job)
	if err != nil {
		return result, err
	}
	result.OutputPath = p.sink.Location(rel)

	resized := false
	if p.opts.Resize != nil {
		kernel := resolveKernel(p.opts.Algorithm, optimizer.Analyze(img, job.SourcePath))
		scaled := resizeImage(img, p.opts.Resize, kernel)
		resized = scaled != img
		img = scaled
	}

	var data []byte
	var label string
	if p.opts.Mode == ModeAuto {
		data, label, err = p.raceAuto(job.SourcePath, img, raw, resized)
	} else {
		data, label, err = p.encodeManual(job.SourcePath, img)
	}
	if err != nil {
		return result, err
	}

	if err := p.sink.Store(ctx, rel, data); err != nil {
		return result, apperrors.NewIOError(result.OutputPath, err)
	}

	result.Mode = label
	result.NewSize = int64(len(data))
	logger.WithFields(logrus.Fields{
		"source": job.SourcePath,
		"output": result.OutputPath,
		"mode":   label,
		"saved":  result.SavedBytes(),
	}).Debug("Image stored")
	return result, nil
}

// raceAuto runs the candidate race. PNG sources that were not resized
// compete against their own on-disk size; when nothing beats it, the
// original bytes are copied through untouched since re-encoding would
// only grow the file. Copying is off the table when transparency is
// being discarded, since the original bytes may still carry alpha.
func (p *Processor) raceAuto(sourcePath string, img image.Image, raw []byte, resized bool) ([]byte, string, error) {
	sourceIsPNG := strings.EqualFold(filepath.Ext(sourcePath), ".png")
	copyEligible := sourceIsPNG && !resized && p.opts.Format == optimizer.FormatPNG &&
		!p.opts.IgnoreTransparency

	baseline := optimizer.UnboundedBaseline
	if copyEligible {
		baseline = int64(len(raw))
	}

	res, err := optimizer.RaceBest(img, sourcePath, baseline, p.opts.Compression,
		p.opts.Format, p.opts.IgnoreTransparency)
	if err != nil {
		return nil, "", err
	}

	if copyEligible && res.Size >= int64(len(raw)) {
		return raw, "Original (Skipped)", nil
	}
	return res.Data, res.Label, nil
}

// encodeManual honors a forced pixel mode. Ignoring transparency
// overrides every manual mode to plain RGB, palette included.
func (p *Processor) encodeManual(sourcePath string, img image.Image) ([]byte, string, error) {
	var mode optimizer.PixelMode
	colors := 0
	switch p.opts.Mode {
	case ModeRGBA:
		mode = optimizer.ModeRGBA
	case ModePalette:
		mode = optimizer.ModePalette
		colors = 256
	case ModeRGB:
		mode = optimizer.ModeRGB
	default:
		return nil, "", apperrors.NewInternalError("unhandled save mode "+string(p.opts.Mode), nil)
	}
	if p.opts.IgnoreTransparency {
		mode = optimizer.ModeRGB
		colors = 0
	}

	data, err := optimizer.EncodeCandidate(img, mode, colors, p.opts.Compression, p.opts.Format)
	if err != nil {
		return nil, "", apperrors.NewCandidateError(sourcePath, string(mode), err)
	}
	label := string(mode)
	if colors > 0 {
		label = optimizer.Candidate{Mode: mode, Colors: colors}.Label()
	}
	return data, label, nil
}

// outputRel computes the relative output path: the source's directory
// relative to the job root, the renamed base, and the format's
// extension. keep_both resolves collisions to a numbered sibling.
func (p *Processor) outputRel(ctx context.Context, job Job) (string, error) {
	base := strings.TrimSuffix(filepath.Base(job.SourcePath), filepath.Ext(job.SourcePath))
	name := p.opts.Prefix + base + p.opts.Suffix + "." + p.opts.Format.Ext()

	relDir := ""
	if job.Root != "" && job.Root != job.SourcePath {
		if d, err := filepath.Rel(job.Root, filepath.Dir(job.SourcePath)); err == nil && d != "." {
			relDir = d
		}
	}
	rel := filepath.ToSlash(filepath.Join(relDir, name))

	if p.opts.Conflict == KeepBoth {
		unique, err := storage.UniquePath(ctx, p.sink, rel)
		if err != nil {
			return "", apperrors.NewIOError(rel, err)
		}
		return unique, nil
	}
	return rel, nil
}
