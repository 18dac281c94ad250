package events

import "github.com/quizlive/quizlive/internal/quiz"

// RoomCreatedPayload acknowledges room creation to the creating connection.
// The admin token is the stable admin identity; presenting it on a later
// join-room rebinds the admin role to a fresh connection.
type RoomCreatedPayload struct {
	RoomID     string `json:"room_id"`
	AdminToken string `json:"admin_token"`
}

// RoomJoinedPayload confirms a join to the caller. Team state rides as a
// detached view taken under the room lock; payloads must stay safe to marshal
// from the broadcast goroutine after the lock is gone.
type RoomJoinedPayload struct {
	RoomID  string         `json:"room_id"`
	IsAdmin bool           `json:"is_admin"`
	Team    *quiz.TeamView `json:"team,omitempty"`
}

// TeamJoinedPayload notifies the admin of a team joining or rebinding.
type TeamJoinedPayload struct {
	Team      quiz.TeamView `json:"team"`
	Reconnect bool          `json:"reconnect"`
}

// TeamsInitPayload is the roster snapshot sent to a (re)joining admin.
type TeamsInitPayload struct {
	Teams []quiz.TeamView `json:"teams"`
}

// ErrorPayload reports an engine error to the originating connection only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QuestionPayload carries the current question to the room. Used by both
// exam-started and question events, and replayed to a rejoining admin.
type QuestionPayload struct {
	Question      quiz.Question `json:"question"`
	Index         int           `json:"index"`
	Total         int           `json:"total"`
	RemainingTime int           `json:"remaining_time"`
}

// ExamStatusPayload accompanies pause/resume events.
type ExamStatusPayload struct {
	RemainingTime int `json:"remaining_time"`
}

// ExamFinishedPayload carries the final standings.
type ExamFinishedPayload struct {
	Teams []quiz.TeamView `json:"teams"`
}

// AnswerResultPayload is the direct reply to a submission. Duplicate is set
// when the team had already answered this question; duplicates never change
// the score and Correct then reports the originally recorded outcome.
type AnswerResultPayload struct {
	QuestionID int  `json:"question_id"`
	Correct    bool `json:"correct"`
	Duplicate  bool `json:"duplicate,omitempty"`
}

// AnswerSubmittedPayload notifies the admin of a counted submission.
type AnswerSubmittedPayload struct {
	TeamID  string `json:"team_id"`
	Correct bool   `json:"is_correct"`
}

// TimeUpdatePayload is broadcast on every countdown tick while active.
type TimeUpdatePayload struct {
	RemainingTime int `json:"remaining_time"`
}

// TeamLeftPayload notifies the admin of a team disconnect.
type TeamLeftPayload struct {
	TeamID string `json:"team_id"`
}
