package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ella-cms/scribble/internal/core/domain"
	"github.com/ella-cms/scribble/internal/core/entity"
	"github.com/ella-cms/scribble/internal/core/field"
	"github.com/ella-cms/scribble/internal/core/ports"
	"github.com/ella-cms/scribble/internal/pkg/metrics"
)

// SyncService persists, queries and deletes entities through a Transport.
type SyncService struct {
	transport ports.Transport
	events    ports.EventPublisher
	log       zerolog.Logger
}

var _ ports.SyncService = (*SyncService)(nil)

// NewSyncService returns a SyncService. events may be nil.
func NewSyncService(transport ports.Transport, events ports.EventPublisher, log zerolog.Logger) *SyncService {
	if events == nil {
		events = nopPublisher{}
	}
	return &SyncService{transport: transport, events: events, log: log}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ports.SavedEvent) {}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

// Save persists e after every unsaved entity it references. Nested saves run
// concurrently and all of them finish before e is sent; the first failure
// aborts e's save. Already persisted nested saves are not rolled back.
func (s *SyncService) Save(ctx context.Context, e *entity.Entity) (err error) {
	defer s.observe("save", e.TypeName(), time.Now(), &err)

	if n := findCycle(e); n != nil {
		return fmt.Errorf("save %s: %s: %w", e.TypeName(), n, domain.ErrCycle)
	}
	run := &saveRun{calls: make(map[*entity.Entity]*saveCall)}
	return s.saveTree(ctx, run, e)
}

// saveRun makes sure an entity reachable along several paths is saved once.
type saveRun struct {
	mu    sync.Mutex
	calls map[*entity.Entity]*saveCall
}

type saveCall struct {
	done chan struct{}
	err  error
}

func (s *SyncService) saveTree(ctx context.Context, run *saveRun, e *entity.Entity) error {
	run.mu.Lock()
	if c, ok := run.calls[e]; ok {
		run.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := &saveCall{done: make(chan struct{})}
	run.calls[e] = c
	run.mu.Unlock()

	c.err = s.saveOne(ctx, run, e)
	close(c.done)
	return c.err
}

// findCycle returns an entity that can reach itself from root, or nil.
func findCycle(root *entity.Entity) *entity.Entity {
	const (
		visiting = 1
		visited  = 2
	)
	state := make(map[*entity.Entity]int)
	var walk func(e *entity.Entity) *entity.Entity
	walk = func(e *entity.Entity) *entity.Entity {
		switch state[e] {
		case visiting:
			return e
		case visited:
			return nil
		}
		state[e] = visiting
		for _, n := range e.Nested() {
			if c := walk(n); c != nil {
				return c
			}
		}
		state[e] = visited
		return nil
	}
	return walk(root)
}

func (s *SyncService) saveOne(ctx context.Context, run *saveRun, e *entity.Entity) error {
	// 1. Dependencies: every nested entity without an id goes first.
	var g errgroup.Group
	for _, dep := range e.Nested() {
		if !dep.IsNew() {
			continue
		}
		g.Go(func() error { return s.saveTree(ctx, run, dep) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("save %s: nested: %w", e.TypeName(), err)
	}

	// 2. Transmit.
	body, err := json.Marshal(e.Values())
	if err != nil {
		return fmt.Errorf("save %s: encode: %w", e.TypeName(), err)
	}
	raw, err := s.transport.Create(ctx, e.TypeName(), body)
	if err != nil {
		return fmt.Errorf("save %s: %w", e.TypeName(), err)
	}

	// 3. Absorb server-assigned values (the id in particular).
	s.absorb(e, raw)

	// 4. Notify.
	s.events.Publish(ctx, ports.SavedEvent{Entity: e, Raw: raw})
	s.log.Debug().Str("type", e.TypeName()).Stringer("entity", e).Msg("entity saved")
	return nil
}

// absorb copies the declared scalar fields of a backend response into e.
// Nested fields are left alone so callers keep their nested instances.
func (s *SyncService) absorb(e *entity.Entity, raw map[string]any) {
	for name, v := range raw {
		decl, ok := e.Type().Declaration(name)
		if !ok || decl.Target() != nil || isNestedKind(decl.Kind()) {
			continue
		}
		if _, err := e.Set(name, v); err != nil {
			s.log.Warn().Err(err).Str("type", e.TypeName()).Str("field", name).Msg("ignoring unusable response field")
		}
	}
}

func isNestedKind(k field.Kind) bool {
	return k == field.KindReference || k == field.KindCollection
}

// ---------------------------------------------------------------------------
// Fetch / Load
// ---------------------------------------------------------------------------

// Fetch returns every backend object matching the set fields of e. Objects
// that do not fit the schema are logged and skipped.
func (s *SyncService) Fetch(ctx context.Context, e *entity.Entity) (out []*entity.Entity, err error) {
	defer s.observe("fetch", e.TypeName(), time.Now(), &err)
	return s.fetch(ctx, e)
}

func (s *SyncService) fetch(ctx context.Context, e *entity.Entity) ([]*entity.Entity, error) {
	filter := FilterValues(e, s.log)
	filter.Set("limit", "0")

	objs, err := s.transport.List(ctx, e.TypeName(), filter)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", e.TypeName(), err)
	}

	out := make([]*entity.Entity, 0, len(objs))
	for i, obj := range objs {
		n, err := e.Type().New(obj)
		if err != nil {
			metrics.HydrationFailuresTotal.WithLabelValues(e.TypeName()).Inc()
			s.log.Warn().Err(err).Str("type", e.TypeName()).Int("index", i).Msg("dropping fetched object")
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Load fetches the single object matching e and merges it into e.
func (s *SyncService) Load(ctx context.Context, e *entity.Entity) (match *entity.Entity, err error) {
	defer s.observe("load", e.TypeName(), time.Now(), &err)

	found, err := s.fetch(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("load %s: %w", e.TypeName(), domain.ErrNoMatch)
	case 1:
	default:
		return nil, fmt.Errorf("load %s: %w (%d objects)", e.TypeName(), domain.ErrAmbiguousMatch, len(found))
	}

	match = found[0]
	if err := e.Merge(match); err != nil {
		return nil, fmt.Errorf("load %s: %w", e.TypeName(), err)
	}
	return match, nil
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

// Delete removes the backend object behind e and clears e's id.
func (s *SyncService) Delete(ctx context.Context, e *entity.Entity) (err error) {
	defer s.observe("delete", e.TypeName(), time.Now(), &err)

	id, ok := e.ID()
	if !ok {
		return fmt.Errorf("delete %s: %w", e.TypeName(), domain.ErrNotPersisted)
	}
	if err := s.transport.Delete(ctx, e.TypeName(), id); err != nil {
		return fmt.Errorf("delete %s: %w", e.TypeName(), err)
	}
	_, _ = e.Unset(entity.IDField)
	return nil
}

// ---------------------------------------------------------------------------
// Async
// ---------------------------------------------------------------------------

func (s *SyncService) SaveAsync(ctx context.Context, e *entity.Entity) *Future[*entity.Entity] {
	return Go(ctx, func(ctx context.Context) (*entity.Entity, error) {
		if err := s.Save(ctx, e); err != nil {
			return nil, err
		}
		return e, nil
	})
}

func (s *SyncService) FetchAsync(ctx context.Context, e *entity.Entity) *Future[[]*entity.Entity] {
	return Go(ctx, func(ctx context.Context) ([]*entity.Entity, error) { return s.Fetch(ctx, e) })
}

func (s *SyncService) LoadAsync(ctx context.Context, e *entity.Entity) *Future[*entity.Entity] {
	return Go(ctx, func(ctx context.Context) (*entity.Entity, error) { return s.Load(ctx, e) })
}

func (s *SyncService) DeleteAsync(ctx context.Context, e *entity.Entity) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) { return struct{}{}, s.Delete(ctx, e) })
}

func (s *SyncService) observe(op, typeName string, start time.Time, err *error) {
	result := "ok"
	if *err != nil {
		result = "error"
	}
	metrics.SyncRequestsTotal.WithLabelValues(op, typeName, result).Inc()
	metrics.SyncDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
