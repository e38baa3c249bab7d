package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ella-cms/scribble/internal/catalog"
	"github.com/ella-cms/scribble/internal/core/entity"
	"github.com/ella-cms/scribble/internal/core/ports"
)

var reg = catalog.MustNew()

func savedEvent(t *testing.T, typeName string, id int) ports.SavedEvent {
	t.Helper()
	e, err := reg.MustLookup(typeName).New(id)
	if err != nil {
		t.Fatalf("new %s: %v", typeName, err)
	}
	return ports.SavedEvent{Entity: e, Raw: map[string]any{"id": id}}
}

func TestDispatcher_DeliversToEverySubscriberInOrder(t *testing.T) {
	d := NewDispatcher(2, zerolog.Nop())

	var mu sync.Mutex
	var first, second []any
	d.Subscribe("first", func(_ context.Context, ev ports.SavedEvent) error {
		id, _ := ev.Entity.ID()
		mu.Lock()
		first = append(first, id)
		mu.Unlock()
		return nil
	})
	d.Subscribe("second", func(_ context.Context, ev ports.SavedEvent) error {
		id, _ := ev.Entity.ID()
		mu.Lock()
		second = append(second, id)
		mu.Unlock()
		return errors.New("ignored")
	})

	d.Start(context.Background())
	for i := 1; i <= 20; i++ {
		d.Publish(context.Background(), savedEvent(t, catalog.Article, i))
	}
	d.Close()

	if len(first) != 20 || len(second) != 20 {
		t.Fatalf("expected 20 deliveries each, got %d and %d", len(first), len(second))
	}
	for i, id := range first {
		if id != int64(i+1) {
			t.Fatalf("out of order delivery at %d: %v", i, first)
		}
	}
}

func TestDispatcher_ShardIsStablePerType(t *testing.T) {
	d := NewDispatcher(8, zerolog.Nop())
	if d.shardIndex(catalog.Article) != d.shardIndex(catalog.Article) {
		t.Fatal("shard index must be deterministic")
	}
	for _, name := range reg.Names() {
		if idx := d.shardIndex(name); idx < 0 || idx >= 8 {
			t.Fatalf("shard %d out of range for %s", idx, name)
		}
	}
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	// Not started: nothing drains the buffer.
	for i := 0; i < channelBuffer+5; i++ {
		d.Publish(context.Background(), savedEvent(t, catalog.Site, i+1))
	}
	if got := len(d.workers[0]); got != channelBuffer {
		t.Fatalf("expected buffer to hold %d events, got %d", channelBuffer, got)
	}
}

func TestDispatcher_PublishAfterCloseIsNoop(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	d.Start(context.Background())
	d.Close()
	d.Close()

	done := make(chan struct{})
	go func() {
		d.Publish(context.Background(), ports.SavedEvent{Entity: mustSite(t)})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish after close blocked")
	}
}

func mustSite(t *testing.T) *entity.Entity {
	t.Helper()
	e, err := reg.MustLookup(catalog.Site).New(nil)
	if err != nil {
		t.Fatalf("new site: %v", err)
	}
	return e
}
