// Package audio is the boundary to whatever renders sound. The engine and
// room actor only decide when a clip should be audible; how it reaches
// speakers (an embedded SDK on the host's browser, a remote device) is an
// implementation of this contract.
package audio

import (
	"context"
	"time"
)

type Backend interface {
	// Play starts rendering uri and should stop on its own after remaining.
	Play(ctx context.Context, uri string, remaining time.Duration) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	// Ready reports whether the backend can render right now.
	Ready(ctx context.Context) bool
}

// Nop is the default: playback is rendered client-side, the server only
// coordinates state.
type Nop struct{}

func (Nop) Play(context.Context, string, time.Duration) error { return nil }
func (Nop) Pause(context.Context) error                       { return nil }
func (Nop) Stop(context.Context) error                        { return nil }
func (Nop) Ready(context.Context) bool                        { return true }
