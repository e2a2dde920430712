// Package classify provides the text classification capability used by
// deep correction detection and preference proposal. It wraps model APIs
// behind a small Client interface and enforces schema validation on
// structured output before any caller may treat it as a learned fact.
package classify

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by NoOpClient and by providers that are not
// configured. Callers treat it like any other capability failure: fall
// back to the cheaper result, never propagate.
var ErrUnavailable = errors.New("classification capability unavailable")

// Client is the text classification capability.
//
// Complete sends a system prompt and a user message to the backing model
// and returns the raw text response. Callers are expected to decode the
// response with DecodeStrict before using it.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)

	// Available reports whether the client is configured and ready.
	// Callers can skip the deep pass entirely when this is false.
	Available() bool
}

// NoOpClient is the Client used when classification is disabled. Every
// completion fails with ErrUnavailable, which callers recover from by
// falling back to quick detection.
type NoOpClient struct{}

// Complete always fails with ErrUnavailable.
func (NoOpClient) Complete(ctx context.Context, system, user string) (string, error) {
	return "", ErrUnavailable
}

// Available returns false.
func (NoOpClient) Available() bool { return false }

var _ Client = NoOpClient{}
