package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies an outbound room event.
type Type string

const (
	TypeRoomCreated     Type = "room-created"
	TypeRoomJoined      Type = "room-joined"
	TypeTeamJoined      Type = "team-joined"
	TypeTeamsInit       Type = "teams-init"
	TypeRoomError       Type = "room-error"
	TypeExamStarted     Type = "exam-started"
	TypeExamError       Type = "exam-error"
	TypeExamPaused      Type = "exam-paused"
	TypeExamResumed     Type = "exam-resumed"
	TypeQuestion        Type = "question"
	TypeExamFinished    Type = "exam-finished"
	TypeAnswerResult    Type = "answer-result"
	TypeAnswerSubmitted Type = "answer-submitted"
	TypeTimeUpdate      Type = "time-update"
	TypeTimeEnded       Type = "time-ended"
	TypeTimeEndedAdmin  Type = "time-ended-admin"
	TypeAdminLeft       Type = "admin-left"
	TypeTeamLeft        Type = "team-left"
)

// Event is the envelope for everything the engine emits. Delivery is
// at-most-once; a dropped event is recovered by the client via state replay
// on reconnect, never by retry.
//
// Data must be a detached value, never a pointer into room state: events are
// marshaled on the broadcast and mirror goroutines after the emitting handler
// has released the room lock.
type Event struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// New builds an event envelope with a fresh id.
func New(roomID string, t Type, data any) *Event {
	return &Event{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
