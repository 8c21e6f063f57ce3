package models

// OptimizeResult is the outcome of processing a single image.
type OptimizeResult struct {
	SourcePath   string `json:"source_path"`
	OutputPath   string `json:"output_path,omitempty"`
	Mode         string `json:"mode"`
	OriginalSize int64  `json:"original_size"`
	NewSize      int64  `json:"new_size"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// SavedBytes is the number of bytes the optimization removed; negative
// when the output grew (manual modes can do that).
func (r OptimizeResult) SavedBytes() int64 {
	return r.OriginalSize - r.NewSize
}

// SavedPercent is the size reduction as a percentage of the original.
func (r OptimizeResult) SavedPercent() float64 {
	if r.OriginalSize == 0 {
		return 0
	}
	return float64(r.SavedBytes()) / float64(r.OriginalSize) * 100
}

// BatchSummary aggregates a whole optimization run.
type BatchSummary struct {
	Processed     int     `json:"processed"`
	Failed        int     `json:"failed"`
	TotalOriginal int64   `json:"total_original"`
	TotalNew      int64   `json:"total_new"`
	SavedBytes    int64   `json:"saved_bytes"`
	SavedPercent  float64 `json:"saved_percent"`
	// Distribution of per-image savings across successful images.
	MeanSavedPercent   float64 `json:"mean_saved_percent"`
	StdDevSavedPercent float64 `json:"stddev_saved_percent"`
}
