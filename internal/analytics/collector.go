package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/kafka"
)

// Sink receives flushed batches. *kafka.Producer and *Aggregator both
// satisfy it.
type Sink interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events off the request path and flushes them to a Sink
// when a batch fills or the flush interval passes. Track never blocks; when
// the buffer is full the event is dropped.
type Collector struct {
	sink          Sink
	eventCh       chan Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
	closeOnce     sync.Once
}

func NewCollector(sink Sink, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		sink:          sink,
		eventCh:       make(chan Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It stops when ctx is cancelled or Close is
// called, flushing whatever is buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		flush := func(ctx context.Context) {
			if len(batch) == 0 {
				return
			}
			if err := c.sink.PublishBatch(ctx, batch); err != nil {
				c.logger.Error("analytics flush failed", "events", len(batch), "error", err)
			} else {
				c.logger.Debug("analytics flushed", "events", len(batch))
			}
			batch = make([]kafka.Event, 0, c.batchSize)
		}
		finalFlush := func() {
		drain:
			for {
				select {
				case ev, ok := <-c.eventCh:
					if !ok {
						break drain
					}
					batch = append(batch, encode(ev))
				default:
					break drain
				}
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(flushCtx)
			cancel()
		}

		for {
			select {
			case ev, ok := <-c.eventCh:
				if !ok {
					finalFlush()
					return
				}
				batch = append(batch, encode(ev))
				if len(batch) >= c.batchSize {
					flush(ctx)
				}
			case <-ticker.C:
				flush(ctx)
			case <-ctx.Done():
				finalFlush()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) Track(event Event) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)", "type", event.eventType())
	}
}

// Close stops accepting events and waits for the final flush. Track must
// not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.eventCh) })
	<-c.done
}

func encode(ev Event) kafka.Event {
	return kafka.Event{Key: ev.key(), Type: string(ev.eventType()), Value: ev}
}
