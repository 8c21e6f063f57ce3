package scan

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gonum.org/v1/gonum/stat"

	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/logger"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/optimizer"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/pool"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/pkg/models"
)

// dedupThreshold is the maximum Hamming distance between two difference
// hashes below which images count as perceptual duplicates.
const dedupThreshold = 10

// Report summarizes a set of input images before processing.
type Report struct {
	Files      int
	Formats    map[string]int
	AlphaTypes map[optimizer.AlphaType]int
	UITextures int
	Duplicates int
	TotalSize  int64
}

// PreAnalyze scans files concurrently and aggregates classification
// statistics plus a perceptual-duplicate count. Unreadable files are
// skipped; the report covers what could be analyzed.
func PreAnalyze(ctx context.Context, files []string, workers int) Report {
	report := Report{
		Formats:    make(map[string]int),
		AlphaTypes: make(map[optimizer.AlphaType]int),
	}

	var mu sync.Mutex
	var hashes []*goimagehash.ImageHash

	wp := pool.NewWorkerPool(workers)
	wp.Start()
	defer wp.Close()

	for _, f := range files {
		file := f
		wp.Submit(ctx, func() {
			size, format, analysis, hash, err := analyzeOne(file)
			if err != nil {
				logger.WithError(err).WithField("path", file).Debug("Pre-analysis skipped file")
				return
			}

			mu.Lock()
			defer mu.Unlock()
			report.Files++
			report.TotalSize += size
			report.Formats[format]++
			report.AlphaTypes[analysis.Alpha]++
			if analysis.IsUI {
				report.UITextures++
			}
			if hash != nil {
				for _, h := range hashes {
					if dist, err := hash.Distance(h); err == nil && dist <= dedupThreshold {
						report.Duplicates++
						return
					}
				}
				hashes = append(hashes, hash)
			}
		})
	}
	wp.Wait()

	return report
}

func analyzeOne(path string) (int64, string, optimizer.ImageAnalysis, *goimagehash.ImageHash, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, "", optimizer.ImageAnalysis{}, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, "", optimizer.ImageAnalysis{}, nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return 0, "", optimizer.ImageAnalysis{}, nil, err
	}

	analysis := optimizer.Analyze(img, path)

	// Hashing failure degrades gracefully: the file still counts, it
	// just cannot participate in duplicate detection.
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		hash = nil
	}

	return info.Size(), strings.ToUpper(format), analysis, hash, nil
}

// Log writes the report through the structured logger.
func (r Report) Log() {
	formats := make([]string, 0, len(r.Formats))
	for k, v := range r.Formats {
		formats = append(formats, fmt.Sprintf("%s: %d", k, v))
	}
	logger.WithFields(logrus.Fields{
		"files":       r.Files,
		"formats":     strings.Join(formats, ", "),
		"opaque":      r.AlphaTypes[optimizer.AlphaNone],
		"binary":      r.AlphaTypes[optimizer.AlphaBinary],
		"partial":     r.AlphaTypes[optimizer.AlphaPartial],
		"ui_textures": r.UITextures,
		"duplicates":  r.Duplicates,
		"total_mb":    fmt.Sprintf("%.2f", float64(r.TotalSize)/(1024*1024)),
	}).Info("Pre-analysis report")
}

// Summarize aggregates per-image results into batch totals; the mean
// and spread of per-image savings come from successful images only.
func Summarize(results []models.OptimizeResult) models.BatchSummary {
	s := models.BatchSummary{}
	var savings []float64
	for _, r := range results {
		if !r.Success {
			s.Failed++
			continue
		}
		s.Processed++
		s.TotalOriginal += r.OriginalSize
		s.TotalNew += r.NewSize
		savings = append(savings, r.SavedPercent())
	}
	s.SavedBytes = s.TotalOriginal - s.TotalNew
	if s.TotalOriginal > 0 {
		s.SavedPercent = float64(s.SavedBytes) / float64(s.TotalOriginal) * 100
	}
	if len(savings) > 0 {
		s.MeanSavedPercent = stat.Mean(savings, nil)
	}
	if len(savings) > 1 {
		s.StdDevSavedPercent = stat.StdDev(savings, nil)
	}
	return s
}
