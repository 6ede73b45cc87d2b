package report

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Mharish0341/Trustguard/internal/listing"
	"github.com/Mharish0341/Trustguard/pkg/kafka"
	"github.com/Mharish0341/Trustguard/pkg/metrics"
)

// Collector accumulates finished reports and publishes them to Kafka in
// bulk, either when the buffer reaches batchSize or after flushInterval,
// whichever comes first. Events are keyed by listing id so one listing's
// re-scores land on the same partition.
type Collector struct {
	producer      *kafka.Producer
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
	done          chan struct{}
}

// NewCollector creates a Collector with the given flush policy. The metrics
// handle may be nil in tests.
func NewCollector(producer *kafka.Producer, batchSize int, flushInterval time.Duration, m *metrics.Metrics) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		producer:      producer,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		metrics:       m,
		logger:        slog.Default().With("component", "report-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop, which runs until ctx is
// cancelled and then performs a final flush with a short deadline.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("report collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Publish queues one report. A full buffer triggers an immediate
// best-effort flush.
func (c *Collector) Publish(rep listing.Report) {
	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: rep.ID, Value: rep})
	shouldFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if shouldFlush {
		go c.flush(context.Background())
	}
}

// Close waits for the background flush loop to finish.
func (c *Collector) Close() {
	<-c.done
}

// BufferLen returns the current number of buffered reports.
func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.countBatch("error")
		c.logger.Error("report flush failed", "batch_size", len(batch), "error", err)
		// Requeue best-effort; repeated failures drop the oldest overflow.
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if max := c.batchSize * 3; len(c.buffer) > max {
			dropped := len(c.buffer) - max
			c.buffer = c.buffer[:max]
			c.logger.Warn("report buffer overflow, events dropped", "dropped", dropped)
		}
		c.mu.Unlock()
		return
	}
	c.countBatch("ok")
	c.logger.Debug("report batch flushed", "events", len(batch))
}

func (c *Collector) countBatch(status string) {
	if c.metrics != nil {
		c.metrics.ReportBatchesTotal.WithLabelValues("kafka", status).Inc()
	}
}
