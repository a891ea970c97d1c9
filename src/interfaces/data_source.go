package interfaces

import (
	"context"
	"sync"

	"quant-observer/src/models"
)

// -----------------------------------------------------------------------------
// IDataSource is anything that periodically yields price ticks.
// -----------------------------------------------------------------------------

type IDataSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// IsRealTime returns true if the source relays a live market feed
	IsRealTime() bool

	// -----------------------------------------------------------------------------

	// Start begins producing ticks
	// ctx: controls the lifecycle (cancellation stops the source)
	// out: channel to push ticks to
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, out chan<- models.MTick, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the source without a context cancel.
	Stop() error
}
