package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRouteServed    EventType = "route_served"
	EventRouteFailed    EventType = "route_failed"
	EventProbeCompleted EventType = "probe_completed"
	EventUploadProxied  EventType = "upload_proxied"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Class      string
	Instance   string
	Duration   time.Duration
	StatusCode int
	Healthy    bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit queues an event without blocking. It is safe to call on a nil Collector.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
		c.logger.Debug("Metrics buffer full, dropping event", slog.String("type", string(event.Type)))
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRouteServed:
		c.metrics.RecordRoute(event.Instance)

	case EventRouteFailed:
		c.metrics.RecordFailure(event.Class)

	case EventProbeCompleted:
		c.metrics.RecordProbe(event.Instance, event.Duration, event.Healthy)

	case EventUploadProxied:
		c.metrics.RecordRoute(event.Instance)
		c.metrics.RecordStatus(event.Instance, event.StatusCode)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(policy string) Snapshot {
	return c.metrics.Snapshot(policy)
}
