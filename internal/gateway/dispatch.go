package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/quizlive/quizlive/internal/engine"
)

// SessionOps is what the gateway needs from the room session engine. Every
// inbound client event maps to exactly one operation; the engine decides
// whether the caller is allowed to perform it.
type SessionOps interface {
	CreateRoom(connID, roomID string)
	JoinRoom(connID, roomID string, claim engine.JoinClaim)
	StartExam(connID, roomID string, settings engine.Settings)
	PauseExam(connID, roomID string)
	ResumeExam(connID, roomID string)
	NextQuestion(connID, roomID string)
	SubmitAnswer(connID, roomID string, questionID int, answer string)
	Disconnect(connID string)
}

// clientMessage is the inbound envelope. Room id rides in the payload; the
// room the connection was opened against is the fallback.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type createRoomRequest struct {
	RoomID string `json:"room_id"`
}

type joinRoomRequest struct {
	RoomID     string           `json:"room_id"`
	IsAdmin    bool             `json:"is_admin"`
	AdminToken string           `json:"admin_token,omitempty"`
	Team       *engine.TeamInfo `json:"team,omitempty"`
}

type startExamRequest struct {
	RoomID   string          `json:"room_id"`
	Settings engine.Settings `json:"settings"`
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

type submitAnswerRequest struct {
	RoomID     string `json:"room_id"`
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

// dispatch routes one inbound client message to the session engine.
// Malformed or unrecognized messages are logged and dropped; the engine's
// tolerance contract extends to the wire.
func (cm *ConnectionManager) dispatch(conn *Connection, raw []byte) {
	if cm.sessions == nil {
		return
	}

	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("dropping malformed client message")
		return
	}

	switch msg.Type {
	case "create-room":
		var req createRoomRequest
		if !decode(conn, msg.Data, &req) {
			return
		}
		cm.sessions.CreateRoom(conn.ID, cm.roomID(conn, req.RoomID))

	case "join-room":
		var req joinRoomRequest
		if !decode(conn, msg.Data, &req) {
			return
		}
		cm.sessions.JoinRoom(conn.ID, cm.roomID(conn, req.RoomID), engine.JoinClaim{
			IsAdmin:    req.IsAdmin,
			AdminToken: req.AdminToken,
			Team:       req.Team,
		})

	case "start-exam":
		var req startExamRequest
		if !decode(conn, msg.Data, &req) {
			return
		}
		cm.sessions.StartExam(conn.ID, cm.roomID(conn, req.RoomID), req.Settings)

	case "pause-exam":
		var req roomRequest
		if !decode(conn, msg.Data, &req) {
			return
		}
		cm.sessions.PauseExam(conn.ID, cm.roomID(conn, req.RoomID))

	case "resume-exam":
		var req roomRequest
		if !decode(conn, msg.Data, &req) {
			return
		}
		cm.sessions.ResumeExam(conn.ID, cm.roomID(conn, req.RoomID))

	case "next-question":
		var req roomRequest
		if !decode(conn, msg.Data, &req) {
			return
		}
		cm.sessions.NextQuestion(conn.ID, cm.roomID(conn, req.RoomID))

	case "submit-answer":
		var req submitAnswerRequest
		if !decode(conn, msg.Data, &req) {
			return
		}
		cm.sessions.SubmitAnswer(conn.ID, cm.roomID(conn, req.RoomID), req.QuestionID, req.Answer)

	default:
		log.Debug().
			Str("connection_id", conn.ID).
			Str("type", msg.Type).
			Msg("ignoring unknown client message type")
	}
}

func (cm *ConnectionManager) roomID(conn *Connection, fromPayload string) string {
	if fromPayload != "" {
		return fromPayload
	}
	return conn.RoomID
}

func decode(conn *Connection, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("dropping client message with malformed payload")
		return false
	}
	return true
}
