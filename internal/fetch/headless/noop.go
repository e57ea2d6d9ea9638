package headless

import (
	"context"
	"errors"

	"github.com/pagescope/readability-server/internal/readability"
)

// ErrRenderingDisabled is returned by the noop renderer.
var ErrRenderingDisabled = errors.New("headless rendering disabled")

// Noop is a Renderer that always refuses. Used when the deployment has no
// browser available.
type Noop struct{}

// NewNoop returns a disabled renderer.
func NewNoop() *Noop { return &Noop{} }

// Render always fails with ErrRenderingDisabled.
func (*Noop) Render(context.Context, readability.FetchRequest) (readability.FetchResponse, error) {
	return readability.FetchResponse{}, ErrRenderingDisabled
}

// Close is a no-op.
func (*Noop) Close() {}
