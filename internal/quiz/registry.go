package quiz

import "sync"

// Registry is the process-wide mapping from room id to room. It is a plain
// keyed store; per-room serialization is the session layer's job, the
// registry only guards its own map. It is passed by handle so tests can run
// isolated instances instead of sharing an ambient singleton.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Create registers a new room in waiting state. Returns ErrDuplicateRoom if
// the id is already taken.
func (reg *Registry) Create(id string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.rooms[id]; exists {
		return nil, ErrDuplicateRoom
	}
	room := &Room{
		ID:     id,
		Status: StatusWaiting,
	}
	reg.rooms[id] = room
	return room, nil
}

// Get returns the room for an id.
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	room, ok := reg.rooms[id]
	return room, ok
}

// Remove deletes a room. Removing an unknown id is a no-op.
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, id)
}

// Rooms returns a snapshot of all live rooms.
func (reg *Registry) Rooms() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Len returns the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
