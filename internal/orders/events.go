package orders

import (
	"github.com/google/uuid"
)

// Event is published to the Real-time Hub (C6) after an order mutation
// commits. Sequence is the monotonically increasing per-order counter
// stored on the order row (§4.4 ordering guarantees).
type Event struct {
	Topic        string
	RestaurantID uuid.UUID
	OrderID      uuid.UUID
	Sequence     int64
	Data         any
}

// Publisher decouples the order engine from the Real-time Hub's concrete
// type, avoiding an import cycle (internal/realtime depends on order
// events, not the reverse). internal/realtime.Hub implements this.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards events; used where no hub is wired (tests, tools).
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
