package platform

import (
	"context"

	"github.com/pkg/errors"

	"github.com/you/pulpit/internal/domain"
)

// Dispatcher publishes one post to one external platform.
// Implement this to add new platforms (instagram, etc.).
type Dispatcher interface {
	// Platform returns the platform identifier this dispatcher handles.
	Platform() string
	// Dispatch performs a single delivery attempt for post.
	Dispatch(ctx context.Context, post *domain.Post) error
}

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Registry maps platform identifiers to dispatchers. An identifier with
// no registered dispatcher fails closed rather than silently no-opping.
type Registry struct {
	dispatchers map[string]Dispatcher
}

func NewRegistry(dispatchers ...Dispatcher) *Registry {
	m := make(map[string]Dispatcher, len(dispatchers))
	for _, d := range dispatchers {
		m[d.Platform()] = d
	}
	return &Registry{dispatchers: m}
}

func (r *Registry) Dispatch(ctx context.Context, platform string, post *domain.Post) error {
	d, ok := r.dispatchers[platform]
	if !ok {
		return errors.Wrap(ErrUnsupportedPlatform, platform)
	}
	return d.Dispatch(ctx, post)
}
