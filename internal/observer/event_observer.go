package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// OptimizeEvent represents a pipeline event for one image
type OptimizeEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	SourcePath     string                 `json:"source_path"`
	Mode           string                 `json:"mode,omitempty"`
	OriginalSize   int64                  `json:"original_size,omitempty"`
	OptimizedSize  int64                  `json:"optimized_size,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	// OptimizeStarted when processing of an image begins
	OptimizeStarted EventType = "optimize_started"
	// OptimizeCompleted when an image is written successfully
	OptimizeCompleted EventType = "optimize_completed"
	// OptimizeFailed when processing an image fails
	OptimizeFailed EventType = "optimize_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event OptimizeEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event OptimizeEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles pipeline events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event OptimizeEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"source_path":     event.SourcePath,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}

	if event.Mode != "" {
		fields["mode"] = event.Mode
	}
	if event.OriginalSize > 0 {
		fields["original_size"] = event.OriginalSize
		fields["optimized_size"] = event.OptimizedSize
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	if event.Metadata != nil {
		for k, v := range event.Metadata {
			fields[k] = v
		}
	}

	switch event.EventType {
	case OptimizeStarted:
		o.logger.WithFields(fields).Debug("Image optimization started")
	case OptimizeCompleted:
		o.logger.WithFields(fields).Info("Image optimization completed")
	case OptimizeFailed:
		o.logger.WithFields(fields).Error("Image optimization failed")
	default:
		o.logger.WithFields(fields).Info("Optimization event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects metrics from pipeline events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalImages         int64
	successfulImages    int64
	failedImages        int64
	totalBytesIn        int64
	totalBytesOut       int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles pipeline events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event OptimizeEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case OptimizeStarted:
		o.totalImages++
	case OptimizeCompleted:
		o.successfulImages++
		o.totalBytesIn += event.OriginalSize
		o.totalBytesOut += event.OptimizedSize
		o.totalProcessingTime += event.ProcessingTime
	case OptimizeFailed:
		o.failedImages++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.successfulImages > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulImages)
	}

	savedBytes := o.totalBytesIn - o.totalBytesOut

	return map[string]interface{}{
		"total_images":          o.totalImages,
		"successful_images":     o.successfulImages,
		"failed_images":         o.failedImages,
		"total_bytes_in":        o.totalBytesIn,
		"total_bytes_out":       o.totalBytesOut,
		"saved_bytes":           savedBytes,
		"total_processing_time": o.totalProcessingTime,
		"avg_processing_time":   avgProcessingTime,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event. Delivery is
// synchronous so batch metrics are complete when the summary prints.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event OptimizeEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
