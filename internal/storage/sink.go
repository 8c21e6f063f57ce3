package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Sink persists optimized images under a relative path. Implementations
// must complete atomically: an aborted job never leaves a partial file
// at the destination path.
type Sink interface {
	// Exists reports whether rel is already occupied.
	Exists(ctx context.Context, rel string) (bool, error)
	// Store writes data at rel, creating intermediate directories.
	Store(ctx context.Context, rel string, data []byte) error
	// Location describes where rel ends up, for reporting.
	Location(rel string) string
}

// SinkConfig selects and parameterizes a sink implementation.
type SinkConfig struct {
	OutputDir string
	Azure     AzureConfig
}

// AzureConfig holds Azure Blob Storage credentials; all three fields
// set switches output to blob upload.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	Container   string
}

func (a AzureConfig) enabled() bool {
	return a.AccountName != "" && a.AccountKey != "" && a.Container != ""
}

// NewSink builds the configured sink: Azure blob upload when
// credentials are present, a local directory otherwise.
func NewSink(cfg SinkConfig) (Sink, error) {
	if cfg.Azure.enabled() {
		return NewAzureSink(cfg.Azure)
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	return NewLocalSink(cfg.OutputDir), nil
}

// UniquePath finds the first unoccupied variant of rel in the sink:
// file.png, file_1.png, file_2.png, ...
func UniquePath(ctx context.Context, s Sink, rel string) (string, error) {
	occupied, err := s.Exists(ctx, rel)
	if err != nil {
		return "", err
	}
	if !occupied {
		return rel, nil
	}

	ext := path.Ext(rel)
	base := strings.TrimSuffix(rel, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", base, counter, ext)
		occupied, err := s.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !occupied {
			return candidate, nil
		}
	}
}
