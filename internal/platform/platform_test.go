package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/you/pulpit/internal/domain"
)

type stubDispatcher struct {
	name string
	err  error
	hits int
}

func (s *stubDispatcher) Platform() string { return s.name }

func (s *stubDispatcher) Dispatch(ctx context.Context, post *domain.Post) error {
	s.hits++
	return s.err
}

func TestRegistryDispatch(t *testing.T) {
	fb := &stubDispatcher{name: "facebook"}
	reg := NewRegistry(fb)

	if err := reg.Dispatch(context.Background(), "facebook", testPost("")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if fb.hits != 1 {
		t.Errorf("hits = %d, want 1", fb.hits)
	}
}

func TestRegistryUnsupportedPlatformFailsClosed(t *testing.T) {
	reg := NewRegistry(&stubDispatcher{name: "facebook"})

	err := reg.Dispatch(context.Background(), "instagram", testPost(""))
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("err = %v, want ErrUnsupportedPlatform", err)
	}
}
