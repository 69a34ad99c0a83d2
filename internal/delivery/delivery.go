// Package delivery defines the inbound transport contract of the application.
package delivery

import "context"

// Delivery is implemented by every inbound transport (HTTP today).
type Delivery interface {
	// Serve blocks serving requests until the transport is shut down.
	Serve(ctx context.Context) error
}
