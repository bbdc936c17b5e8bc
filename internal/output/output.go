// Package output defines event sinks. Subpackages implement stdout, file,
// webhook and BadgerDB destinations plus fan-out and async wrappers.
package output

import (
	"context"

	"github.com/crimson-sun/avrca/internal/model"
)

// Output defines the interface for canonical event destinations.
type Output interface {
	Write(ctx context.Context, event model.Event) error
	Close() error
}
