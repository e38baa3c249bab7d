package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ella-cms/scribble/internal/core/ports"
	"github.com/ella-cms/scribble/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Handler consumes one saved event.
type Handler func(ctx context.Context, ev ports.SavedEvent) error

type subscriber struct {
	name string
	fn   Handler
}

// Dispatcher fans saved events out to subscribers on a fixed set of workers.
// Events are sharded by entity type, so handlers see the saves of one type
// in publication order.
type Dispatcher struct {
	workers []chan ports.SavedEvent
	log     zerolog.Logger

	mu     sync.RWMutex
	subs   []subscriber
	closed bool
	wg     sync.WaitGroup
}

var _ ports.EventPublisher = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.SavedEvent, numWorkers),
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.SavedEvent, channelBuffer)
	}
	return d
}

// Subscribe registers h under name. Subscribers added after Start receive
// only later events.
func (d *Dispatcher) Subscribe(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, subscriber{name: name, fn: h})
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled
// or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Publish hands ev to the worker responsible for its type. It never blocks:
// when that worker's buffer is full the event is dropped and logged.
func (d *Dispatcher) Publish(_ context.Context, ev ports.SavedEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	idx := d.shardIndex(ev.Entity.TypeName())
	select {
	case d.workers[idx] <- ev:
		metrics.EventQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	default:
		metrics.SavedEventsTotal.WithLabelValues("bus", "dropped").Inc()
		d.log.Warn().
			Str("type", ev.Entity.TypeName()).
			Int("worker_id", idx).
			Msg("event queue full, saved event dropped")
	}
}

// Close stops accepting events and waits for the workers to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// shardIndex maps an entity type deterministically to a worker index.
func (d *Dispatcher) shardIndex(typeName string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(typeName))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.SavedEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			metrics.EventQueueDepth.WithLabelValues(label).Dec()
			d.deliver(ctx, id, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, ev ports.SavedEvent) {
	d.mu.RLock()
	subs := append([]subscriber(nil), d.subs...)
	d.mu.RUnlock()

	for _, s := range subs {
		if err := s.fn(ctx, ev); err != nil {
			metrics.SavedEventsTotal.WithLabelValues("bus", "error").Inc()
			d.log.Error().Err(err).
				Str("subscriber", s.name).
				Str("type", ev.Entity.TypeName()).
				Int("worker_id", worker).
				Msg("saved event handler failed")
			continue
		}
		metrics.SavedEventsTotal.WithLabelValues("bus", "ok").Inc()
	}
}
