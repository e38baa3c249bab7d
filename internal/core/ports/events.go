package ports

import (
	"context"

	"github.com/ella-cms/scribble/internal/core/entity"
)

// SavedEvent is published after a successful save. Raw is the decoded
// backend response.
type SavedEvent struct {
	Entity *entity.Entity
	Raw    map[string]any
}

// EventPublisher delivers saved events. Publish must not block on slow
// consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev SavedEvent)
}

// SyncService is the client-side synchronization engine.
type SyncService interface {
	Save(ctx context.Context, e *entity.Entity) error
	Fetch(ctx context.Context, e *entity.Entity) ([]*entity.Entity, error)
	Load(ctx context.Context, e *entity.Entity) (*entity.Entity, error)
	Delete(ctx context.Context, e *entity.Entity) error
}
