package ports

import (
	"context"
	"net/url"
)

// Transport speaks the backend's collection protocol. Each method is exactly
// one round trip; failures are *domain.TransportError.
type Transport interface {
	// List issues GET <collection>?<filter> and returns the "objects" array.
	List(ctx context.Context, typeName string, filter url.Values) ([]map[string]any, error)

	// Create issues POST <collection> with a JSON body and returns the
	// persisted object.
	Create(ctx context.Context, typeName string, body []byte) (map[string]any, error)

	// Delete issues DELETE <collection><id>/.
	Delete(ctx context.Context, typeName string, id any) error
}
