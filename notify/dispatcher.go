package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warp/loyalty-engine/loyalty"
)

const (
	DefaultBuffer         = 256
	DefaultPublishTimeout = 5 * time.Second
)

// Dispatcher queues events and publishes them from a single worker.
type Dispatcher struct {
	pub     Publisher
	logger  *slog.Logger
	timeout time.Duration

	events chan loyalty.BalanceChanged
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

var _ loyalty.Notifier = (*Dispatcher)(nil)

// Stats counts outcomes since start.
type Stats struct {
	Published int64
	Dropped   int64
	Failed    int64
}

// NewDispatcher starts the worker. buffer <= 0 uses DefaultBuffer.
func NewDispatcher(pub Publisher, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		pub:     pub,
		logger:  logger.With("component", "notify"),
		timeout: DefaultPublishTimeout,
		events:  make(chan loyalty.BalanceChanged, buffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues without blocking. Events arriving while the queue is
// full, or after Close, are dropped.
func (d *Dispatcher) Notify(event loyalty.BalanceChanged) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.events <- event:
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification queue full, dropping event",
			"account_id", event.AccountID, "balance", event.Balance)
	}
}

// Close stops accepting events, publishes what is queued, and waits for
// the worker to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Published: d.published.Load(),
		Dropped:   d.dropped.Load(),
		Failed:    d.failed.Load(),
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.events {
		d.publish(event)
	}
}

func (d *Dispatcher) publish(event loyalty.BalanceChanged) {
	log := d.logger.With("account_id", event.AccountID, "topic", event.Topic())

	payload, err := event.Payload()
	if err != nil {
		d.failed.Add(1)
		log.Error("encode notification", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.pub.Publish(ctx, event.Topic(), payload); err != nil {
		d.failed.Add(1)
		log.Warn("publish notification failed", "error", err)
		return
	}
	d.published.Add(1)
}
