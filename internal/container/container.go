package container

import (
	"fmt"
	"net/http"

	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/config"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/logger"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/observer"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/optimizer"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/pipeline"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/pool"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/storage"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	sink         storage.Sink
	imageFetcher storage.ImageFetcher
	publisher    observer.Subject
	metrics      *observer.MetricsObserver
	processor    *pipeline.Processor
	workerPool   *pool.WorkerPool
	handler      http.Handler
}

// NewContainer builds the dependency graph from the given config.
func NewContainer(cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	format, err := optimizer.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	resizeSpec, err := pipeline.ParseResizeSpec(cfg.Resize)
	if err != nil {
		return nil, err
	}

	sink, err := storage.NewSink(storage.SinkConfig{
		OutputDir: cfg.Output,
		Azure: storage.AzureConfig{
			AccountName: cfg.AzureAccountName,
			AccountKey:  cfg.AzureAccountKey,
			Container:   cfg.AzureContainer,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create output sink: %w", err)
	}

	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	opts := pipeline.Options{
		Mode:               pipeline.SaveMode(cfg.Mode),
		Format:             format,
		Compression:        cfg.Compression,
		Conflict:           pipeline.ConflictPolicy(cfg.Conflict),
		IgnoreTransparency: cfg.IgnoreTransparency,
		Prefix:             cfg.Prefix,
		Suffix:             cfg.Suffix,
		Algorithm:          cfg.Algorithm,
		Resize:             resizeSpec,
	}
	processor := pipeline.NewProcessor(sink, publisher, opts)

	imageFetcher := storage.NewHTTPImageFetcher(cfg.MaxRequestBodySize)
	handler := transport.NewHandler(imageFetcher, cfg)

	return &Container{
		config:       cfg,
		sink:         sink,
		imageFetcher: imageFetcher,
		publisher:    publisher,
		metrics:      metrics,
		processor:    processor,
		workerPool:   pool.NewWorkerPool(cfg.WorkerCount()),
		handler:      handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Processor returns the per-image processor
func (c *Container) Processor() *pipeline.Processor {
	return c.processor
}

// WorkerPool returns the shared worker pool
func (c *Container) WorkerPool() *pool.WorkerPool {
	return c.workerPool
}

// Metrics returns the batch metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}
