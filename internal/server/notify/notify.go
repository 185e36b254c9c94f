// Package notify delivers owner notifications for deleted files through a
// bounded queue drained by a small worker pool.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Notice tells an owner that one of their files was removed.
type Notice struct {
	OwnerID     string
	DisplayName string
	Days        int
}

// Message is the text sent to the owner.
func (n Notice) Message() string {
	return fmt.Sprintf("Your file %s has been deleted after %d days.", n.DisplayName, n.Days)
}

// Sink performs the actual delivery. Errors are retried by the dispatcher.
type Sink interface {
	Deliver(ctx context.Context, n Notice) error
}

// LogSink writes notices to the log. It stands in for a mail or message bus transport.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(l logging.Logger) *LogSink {
	return &LogSink{logger: l.With("module", "notify_sink")}
}

func (s *LogSink) Deliver(ctx context.Context, n Notice) error {
	s.logger.Info(ctx, n.Message(), "owner_id", n.OwnerID)
	return nil
}

type Config struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
	Backoff    time.Duration
}

// Dispatcher fans notices out to a Sink. Enqueue never blocks; a full or
// stopped queue drops the notice and logs it.
type Dispatcher struct {
	sink   Sink
	logger logging.Logger
	cfg    Config

	mu      sync.RWMutex
	queue   chan Notice
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(sink Sink, l logging.Logger, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 100 * time.Millisecond
	}
	return &Dispatcher{
		sink:   sink,
		logger: l.With("module", "notify"),
		cfg:    cfg,
		queue:  make(chan Notice, cfg.QueueSize),
	}
}

// Start launches the workers. They exit when the queue is closed by Stop;
// ctx bounds individual deliveries.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for n := range d.queue {
				d.deliver(ctx, n)
			}
		}()
	}
}

// Stop closes the queue and waits for queued notices to be processed.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) Enqueue(n Notice) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.logger.Warn(context.Background(), "notification dropped, dispatcher stopped", "owner_id", n.OwnerID, "file", n.DisplayName)
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		d.logger.Warn(context.Background(), "notification dropped, queue full", "owner_id", n.OwnerID, "file", n.DisplayName)
		return false
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notice) {
	b := retry.WithMaxRetries(d.cfg.MaxRetries, retry.NewExponential(d.cfg.Backoff))

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := d.sink.Deliver(ctx, n); err != nil {
			d.logger.Debug(ctx, "notification attempt failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error(ctx, "notification failed", "owner_id", n.OwnerID, "file", n.DisplayName, "attempts", attempt, "error", err)
	}
}
