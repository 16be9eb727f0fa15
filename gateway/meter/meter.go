// Package meter applies per-tenant usage increments off the request path.
// Increments are fire-and-forget: a full queue or a store failure is logged
// and counted but never delays or fails the proxied call.
package meter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"chaingate/gateway/metrics"
	"chaingate/tenant"
)

const (
	defaultQueueSize = 1024
	incrementTimeout = 5 * time.Second
)

type Meter struct {
	store   tenant.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan uuid.UUID
	wg     sync.WaitGroup
}

// New starts the drainer goroutine. queueSize <= 0 selects the default.
func New(store tenant.Store, logger *slog.Logger, m *metrics.Metrics, queueSize int) *Meter {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New("", nil)
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	meter := &Meter{
		store:   store,
		logger:  logger.With("component", "meter"),
		metrics: m,
		queue:   make(chan uuid.UUID, queueSize),
	}
	meter.wg.Add(1)
	go meter.drain()
	return meter
}

// Record queues one usage increment for the tenant connection. It never
// blocks: when the queue is full the increment is dropped and counted.
func (m *Meter) Record(id uuid.UUID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- id:
	default:
		m.metrics.MeterDrops.Inc()
		m.logger.Warn("usage increment dropped, queue full", "tenant", id)
	}
}

// Close stops accepting increments and waits for the queue to drain.
func (m *Meter) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Meter) drain() {
	defer m.wg.Done()
	for id := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), incrementTimeout)
		err := m.store.IncrementUsage(ctx, id)
		cancel()
		if err != nil {
			m.metrics.MeterFailures.Inc()
			m.logger.Error("usage increment failed", "tenant", id, "error", err)
		}
	}
}
