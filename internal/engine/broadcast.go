package engine

import "github.com/quizlive/quizlive/internal/events"

// Broadcaster fans engine events out to connections. Implementations must be
// non-blocking and must never call back into the engine: events are emitted
// while the room lock is held. Delivery is at-most-once; no buffering or
// retry beyond what the transport's send queues provide.
//
// Admin-only addressing is expressed as ToConn on the room's currently bound
// admin connection.
type Broadcaster interface {
	// ToRoom delivers to every connection in the room's multicast group.
	ToRoom(roomID string, ev *events.Event)
	// ToConn delivers to a single connection.
	ToConn(connID string, ev *events.Event)
}
