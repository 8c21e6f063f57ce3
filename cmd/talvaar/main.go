package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/config"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/container"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/logger"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/pipeline"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/scan"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/watch"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/pkg/models"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	configFile := flag.String("config", "", "YAML config file")

	flag.StringVar(&cfg.Input, "i", cfg.Input, "Input file or directory")
	flag.StringVar(&cfg.Input, "input", cfg.Input, "Input file or directory")
	flag.StringVar(&cfg.Output, "o", cfg.Output, "Output directory")
	flag.StringVar(&cfg.Output, "output", cfg.Output, "Output directory")
	flag.StringVar(&cfg.Format, "format", cfg.Format, "Output format (png, jpeg, webp, qoi)")
	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "Save mode (auto, rgba, palette, rgb)")
	flag.IntVar(&cfg.Compression, "compression", cfg.Compression, "Compression level (0-9)")
	flag.StringVar(&cfg.Conflict, "conflict", cfg.Conflict, "Conflict resolution (overwrite, keep_both)")
	flag.BoolVar(&cfg.IgnoreTransparency, "ignore-transparency", cfg.IgnoreTransparency, "Discard alpha channel (force RGB)")
	flag.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "Prefix for output filenames")
	flag.StringVar(&cfg.Suffix, "suffix", cfg.Suffix, "Suffix for output filenames")
	flag.StringVar(&cfg.Algorithm, "algorithm", cfg.Algorithm, "Resizing algorithm (auto, nearest, bilinear, bicubic, mitchell, lanczos)")
	flag.StringVar(&cfg.Resize, "resize", cfg.Resize, "Resize spec (WxH or N%)")
	flag.IntVar(&cfg.Workers, "threads", cfg.Workers, "Number of workers (0 = auto)")
	flag.BoolVar(&cfg.Report, "report", cfg.Report, "Show pre-analysis report before processing")
	flag.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Watch the input directory and process new images")
	flag.BoolVar(&cfg.Serve, "serve", cfg.Serve, "Run the HTTP optimization service")
	flag.StringVar(&cfg.LogFile, "log", cfg.LogFile, "Log file path (verbose file logging)")

	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if *configFile != "" {
		if err := config.LoadFile(*configFile, cfg); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}
	if cfg.Input == "" && flag.NArg() > 0 {
		cfg.Input = flag.Arg(0)
	}

	if *verbose {
		logger.SetVerbose()
	}
	if cfg.LogFile != "" {
		logger.SetVerbose()
		if err := logger.SetFile(cfg.LogFile); err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
	}

	c, err := container.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case cfg.Serve:
		runServe(ctx, c)
	case cfg.Watch:
		runWatch(ctx, c)
	default:
		runBatch(ctx, c)
	}
}

// runBatch processes every image under the input path once.
func runBatch(ctx context.Context, c *container.Container) {
	cfg := c.Config()
	if cfg.Input == "" {
		fmt.Fprintln(os.Stderr, "No input path given. Use -i or a positional argument.")
		flag.Usage()
		os.Exit(2)
	}

	files, err := scan.Discover(cfg.Input)
	if err != nil {
		logger.WithError(err).Error("Failed to scan input path")
		os.Exit(1)
	}
	if len(files) == 0 {
		logger.WithField("input", cfg.Input).Warn("No images found")
		return
	}
	logger.WithFields(logrus.Fields{
		"input": cfg.Input,
		"count": len(files),
	}).Info("Found images")

	if cfg.Report {
		scan.PreAnalyze(ctx, files, cfg.WorkerCount()).Log()
	}

	root := cfg.Input
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		root = filepath.Dir(root)
	}

	results := processAll(ctx, c, files, root)
	printSummary(cfg, results, len(files))

	if ctx.Err() != nil {
		logger.Warn("Aborted by signal; partial results above")
		os.Exit(1)
	}
}

// processAll fans files out over the worker pool and collects results.
func processAll(ctx context.Context, c *container.Container, files []string, root string) []models.OptimizeResult {
	wp := c.WorkerPool()
	wp.Start()
	defer wp.Close()

	var mu sync.Mutex
	results := make([]models.OptimizeResult, 0, len(files))

	for _, f := range files {
		file := f
		accepted := wp.Submit(ctx, func() {
			result, _ := c.Processor().Process(ctx, pipeline.Job{SourcePath: file, Root: root})
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		})
		if !accepted {
			break
		}
	}
	wp.Wait()
	return results
}

func printSummary(cfg *config.Config, results []models.OptimizeResult, total int) {
	s := scan.Summarize(results)
	const mb = 1024 * 1024
	logger.WithFields(logrus.Fields{
		"processed":    fmt.Sprintf("%d/%d", s.Processed, total),
		"failed":       s.Failed,
		"total_before": fmt.Sprintf("%.2f MB", float64(s.TotalOriginal)/mb),
		"total_after":  fmt.Sprintf("%.2f MB", float64(s.TotalNew)/mb),
		"saved":        fmt.Sprintf("%.2f MB (%.1f%%)", float64(s.SavedBytes)/mb, s.SavedPercent),
		"mean_saved":   fmt.Sprintf("%.1f%%", s.MeanSavedPercent),
		"stddev_saved": fmt.Sprintf("%.1f%%", s.StdDevSavedPercent),
	}).Info("Optimization results")

	if out, err := filepath.Abs(cfg.Output); err == nil {
		logger.WithField("output", out).Info("Output directory")
	}
}

// runWatch processes the existing tree, then keeps optimizing images
// as they land in the input directory.
func runWatch(ctx context.Context, c *container.Container) {
	cfg := c.Config()
	if cfg.Input == "" {
		fmt.Fprintln(os.Stderr, "Watch mode needs an input directory. Use -i.")
		os.Exit(2)
	}

	w, err := watch.NewWatcher(cfg.Input)
	if err != nil {
		logger.WithError(err).Error("Failed to start watcher")
		os.Exit(1)
	}
	defer w.Stop()
	w.Start(ctx)

	wp := c.WorkerPool()
	wp.Start()
	defer wp.Close()

	// Catch up on whatever already exists before tailing new events.
	if files, err := scan.Discover(cfg.Input); err == nil {
		for _, f := range files {
			file := f
			wp.Submit(ctx, func() {
				c.Processor().Process(ctx, pipeline.Job{SourcePath: file, Root: cfg.Input})
			})
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Watch mode stopped")
			wp.Wait()
			return
		case path := <-w.Paths():
			file := path
			wp.Submit(ctx, func() {
				c.Processor().Process(ctx, pipeline.Job{SourcePath: file, Root: cfg.Input})
			})
		}
	}
}

// runServe exposes the optimizer over HTTP until the context is
// cancelled, then shuts down gracefully.
func runServe(ctx context.Context, c *container.Container) {
	cfg := c.Config()
	logger.UseJSON()

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address": cfg.ServerAddress(),
			"timeout": cfg.RequestTimeout,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Failed to start server")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Info("Server exited")
}
