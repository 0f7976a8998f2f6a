package image

import (
	"context"
	"errors"
)

// ErrRateLimited is returned by a Generator when the upstream provider
// rejected the call because of quota or throttling.
var ErrRateLimited = errors.New("image provider rate limited")

// Generator is the contract implemented by all image providers. It returns
// the encoded image bytes for prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}
