package quiz

import "errors"

// Errors surfaced to the originating connection. Everything else in the
// engine's contract degrades to a silent no-op so stale or duplicate client
// messages are tolerated.
var (
	ErrDuplicateRoom = errors.New("room id already in use")
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotAdmin      = errors.New("caller is not the room admin")
	ErrNoCategories  = errors.New("no categories selected")
	ErrNoQuestions   = errors.New("no questions available for selected categories")
)
