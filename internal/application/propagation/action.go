package propagation

import (
	"context"

	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/google/uuid"
)

// ActionKind identifies the kind of write to push to a platform
type ActionKind string

const (
	// ActionEnd delists the listing on its platform
	ActionEnd ActionKind = "end"
	// ActionSetQuantity updates the available quantity on the platform
	ActionSetQuantity ActionKind = "set_quantity"
	// ActionRelist reactivates a previously ended listing
	ActionRelist ActionKind = "relist"
	// ActionCreateMirror creates a listing on a platform the product is not
	// yet listed on
	ActionCreateMirror ActionKind = "create_mirror"
)

// IsValid returns true if the action kind is valid
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionEnd, ActionSetQuantity, ActionRelist, ActionCreateMirror:
		return true
	default:
		return false
	}
}

// String returns the string representation of ActionKind
func (k ActionKind) String() string {
	return string(k)
}

// Action is one outbound write against one platform listing. Actions for the
// same link execute in dispatch order; actions for different links run
// concurrently.
type Action struct {
	Kind     ActionKind
	LinkID   uuid.UUID
	Platform platform.Code
	// ExternalID may be empty for create_mirror and for links whose id is
	// still pending asynchronous resolution
	ExternalID string
	// Quantity applies to set_quantity
	Quantity int
	// Draft applies to create_mirror
	Draft *platform.ListingDraft
}

// Dispatcher accepts propagation actions for asynchronous execution
type Dispatcher interface {
	// Dispatch enqueues actions. It never blocks on platform I/O; execution
	// happens on per-link workers.
	Dispatch(ctx context.Context, actions ...Action) error
}
