// Package engine implements the room session state machine: exam lifecycle,
// per-question countdowns, scoring, and the identity model binding
// connections to the admin role or to teams.
//
// Every operation takes the id of the connection that issued it. Operations
// referencing an unknown room or issued by the wrong connection degrade to a
// silent no-op unless the contract names an explicit error; this tolerance of
// stale and duplicate client messages is deliberate, not a fallthrough.
package engine

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizlive/quizlive/internal/bank"
	"github.com/quizlive/quizlive/internal/events"
	"github.com/quizlive/quizlive/internal/quiz"
)

const defaultTimePerQuestion = 30

// Settings are the admin-chosen parameters for one exam.
type Settings struct {
	Categories      []string `json:"categories"`
	QuestionCount   int      `json:"question_count"`
	TimePerQuestion int      `json:"time_per_question"`
}

// TeamInfo is the descriptive team payload supplied on join. The id is the
// stable identity that survives reconnects.
type TeamInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	MemberCount int      `json:"member_count"`
	Members     []string `json:"members,omitempty"`
}

// JoinClaim is what a connection asserts about itself when joining a room.
// Admin claims are honored for the connection that created the room or for
// any connection presenting the admin token issued at creation.
type JoinClaim struct {
	IsAdmin    bool      `json:"is_admin"`
	AdminToken string    `json:"admin_token,omitempty"`
	Team       *TeamInfo `json:"team,omitempty"`
}

// Engine drives all room sessions in the process. Rooms serialize their own
// event handlers through their per-room lock; the engine itself holds no
// cross-room state beyond the registry handle.
type Engine struct {
	registry *quiz.Registry
	bank     *bank.Bank
	out      Broadcaster
	clock    clockwork.Clock
}

func New(registry *quiz.Registry, b *bank.Bank, out Broadcaster, clock clockwork.Clock) *Engine {
	return &Engine{
		registry: registry,
		bank:     b,
		out:      out,
		clock:    clock,
	}
}

// CreateRoom registers a room with the caller as admin and replies with the
// admin token that allows rebinding the role after a reconnect.
func (e *Engine) CreateRoom(connID, roomID string) {
	room, err := e.registry.Create(roomID)
	if err != nil {
		e.out.ToConn(connID, events.New(roomID, events.TypeRoomError,
			events.ErrorPayload{Code: "duplicate-room", Message: err.Error()}))
		return
	}

	room.Lock()
	room.AdminConnID = connID
	room.AdminToken = uuid.New().String()
	token := room.AdminToken
	room.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("connection_id", connID).
		Msg("room created")

	e.out.ToConn(connID, events.New(roomID, events.TypeRoomCreated,
		events.RoomCreatedPayload{RoomID: roomID, AdminToken: token}))
}

// JoinRoom binds a connection to a room role. A known team id rebinds the
// team's connection and preserves its score; an admin claim rebinds the admin
// connection and replays the current exam state so a refreshed admin view is
// consistent with the room.
func (e *Engine) JoinRoom(connID, roomID string, claim JoinClaim) {
	room, ok := e.registry.Get(roomID)
	if !ok {
		e.out.ToConn(connID, events.New(roomID, events.TypeRoomError,
			events.ErrorPayload{Code: "room-not-found", Message: quiz.ErrRoomNotFound.Error()}))
		return
	}

	room.Lock()
	defer room.Unlock()

	if claim.IsAdmin {
		e.joinAsAdmin(connID, room, claim)
		return
	}
	e.joinAsTeam(connID, room, claim.Team)
}

func (e *Engine) joinAsAdmin(connID string, room *quiz.Room, claim JoinClaim) {
	if connID != room.AdminConnID && (claim.AdminToken == "" || claim.AdminToken != room.AdminToken) {
		e.out.ToConn(connID, events.New(room.ID, events.TypeRoomError,
			events.ErrorPayload{Code: "not-admin", Message: quiz.ErrNotAdmin.Error()}))
		return
	}

	room.AdminConnID = connID
	log.Info().
		Str("room_id", room.ID).
		Str("connection_id", connID).
		Msg("admin bound to room")

	e.out.ToConn(connID, events.New(room.ID, events.TypeRoomJoined,
		events.RoomJoinedPayload{RoomID: room.ID, IsAdmin: true}))
	e.out.ToConn(connID, events.New(room.ID, events.TypeTeamsInit,
		events.TeamsInitPayload{Teams: room.TeamViews()}))

	// Replay the current question window so a reconnected admin catches up.
	if room.Status == quiz.StatusActive || room.Status == quiz.StatusPaused {
		e.out.ToConn(connID, events.New(room.ID, events.TypeQuestion,
			e.questionPayload(room)))
	}
}

func (e *Engine) joinAsTeam(connID string, room *quiz.Room, info *TeamInfo) {
	if info == nil || info.ID == "" {
		return
	}

	if team := room.TeamByID(info.ID); team != nil {
		team.ConnectionID = connID
		log.Info().
			Str("room_id", room.ID).
			Str("team_id", team.ID).
			Str("connection_id", connID).
			Msg("team reconnected")

		view := team.View()
		e.out.ToConn(connID, events.New(room.ID, events.TypeRoomJoined,
			events.RoomJoinedPayload{RoomID: room.ID, Team: &view}))
		e.out.ToConn(room.AdminConnID, events.New(room.ID, events.TypeTeamJoined,
			events.TeamJoinedPayload{Team: view, Reconnect: true}))
		return
	}

	team := &quiz.Team{
		ID:           info.ID,
		Name:         info.Name,
		MemberCount:  info.MemberCount,
		Members:      info.Members,
		ConnectionID: connID,
	}
	room.Teams = append(room.Teams, team)
	log.Info().
		Str("room_id", room.ID).
		Str("team_id", team.ID).
		Str("connection_id", connID).
		Msg("team joined")

	view := team.View()
	e.out.ToConn(connID, events.New(room.ID, events.TypeRoomJoined,
		events.RoomJoinedPayload{RoomID: room.ID, Team: &view}))
	e.out.ToConn(room.AdminConnID, events.New(room.ID, events.TypeTeamJoined,
		events.TeamJoinedPayload{Team: view}))
}

// StartExam samples a question set from the bank and opens the first question
// window. Only the admin of a waiting room may start; sampling failures go
// back to the caller only.
func (e *Engine) StartExam(connID, roomID string, settings Settings) {
	room, ok := e.registry.Get(roomID)
	if !ok {
		return
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.AdminConnID || room.Status != quiz.StatusWaiting {
		return
	}

	questions, err := e.bank.Pick(settings.Categories, settings.QuestionCount)
	if err != nil {
		e.out.ToConn(connID, events.New(roomID, events.TypeExamError,
			events.ErrorPayload{Code: errCode(err), Message: err.Error()}))
		return
	}

	if settings.TimePerQuestion <= 0 {
		settings.TimePerQuestion = defaultTimePerQuestion
	}

	for _, team := range room.Teams {
		team.ResetExam()
	}
	room.Questions = questions
	room.CurrentIndex = 0
	room.TimePerQuestion = settings.TimePerQuestion
	room.RemainingTime = settings.TimePerQuestion
	room.Status = quiz.StatusActive
	e.armTimer(room)

	log.Info().
		Str("room_id", roomID).
		Int("questions", len(questions)).
		Int("time_per_question", settings.TimePerQuestion).
		Strs("categories", settings.Categories).
		Msg("exam started")

	e.out.ToRoom(roomID, events.New(roomID, events.TypeExamStarted, e.questionPayload(room)))
}

// PauseExam suspends the countdown. The timer is cancelled, not merely
// ignored, so no orphaned decrements can land while paused.
func (e *Engine) PauseExam(connID, roomID string) {
	room, ok := e.registry.Get(roomID)
	if !ok {
		return
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.AdminConnID || room.Status != quiz.StatusActive {
		return
	}

	room.StopTimer()
	room.Status = quiz.StatusPaused

	log.Info().Str("room_id", roomID).Int("remaining", room.RemainingTime).Msg("exam paused")
	e.out.ToRoom(roomID, events.New(roomID, events.TypeExamPaused,
		events.ExamStatusPayload{RemainingTime: room.RemainingTime}))
}

// ResumeExam re-arms the countdown with the remaining time carried over from
// the pause.
func (e *Engine) ResumeExam(connID, roomID string) {
	room, ok := e.registry.Get(roomID)
	if !ok {
		return
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.AdminConnID || room.Status != quiz.StatusPaused {
		return
	}

	room.Status = quiz.StatusActive
	e.armTimer(room)

	log.Info().Str("room_id", roomID).Int("remaining", room.RemainingTime).Msg("exam resumed")
	e.out.ToRoom(roomID, events.New(roomID, events.TypeExamResumed,
		events.ExamStatusPayload{RemainingTime: room.RemainingTime}))
}

// NextQuestion advances the exam: the live countdown is cancelled, the next
// question window opens, or the final standings go out once the set is
// exhausted. Finished is terminal; nothing is emitted after exhaustion.
func (e *Engine) NextQuestion(connID, roomID string) {
	room, ok := e.registry.Get(roomID)
	if !ok {
		return
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.AdminConnID || len(room.Questions) == 0 || room.Status == quiz.StatusFinished {
		return
	}

	room.StopTimer()
	room.CurrentIndex++

	if room.CurrentIndex < len(room.Questions) {
		room.RemainingTime = room.TimePerQuestion
		room.Status = quiz.StatusActive
		e.armTimer(room)

		log.Info().
			Str("room_id", roomID).
			Int("index", room.CurrentIndex).
			Msg("next question")
		e.out.ToRoom(roomID, events.New(roomID, events.TypeQuestion, e.questionPayload(room)))
		return
	}

	room.CurrentIndex = len(room.Questions)
	room.RemainingTime = 0
	room.Status = quiz.StatusFinished

	log.Info().
		Str("room_id", roomID).
		Int("teams", len(room.Teams)).
		Msg("exam finished")
	e.out.ToRoom(roomID, events.New(roomID, events.TypeExamFinished,
		events.ExamFinishedPayload{Teams: room.TeamViews()}))
}

// SubmitAnswer evaluates a team's answer by exact equality against the stored
// correct answer. Only the first submission per question counts; the team's
// score increments by exactly one per first-correct submission. Submissions
// are accepted only while a question window is open.
func (e *Engine) SubmitAnswer(connID, roomID string, questionID int, answer string) {
	room, ok := e.registry.Get(roomID)
	if !ok {
		return
	}

	room.Lock()
	defer room.Unlock()

	if room.Status != quiz.StatusActive {
		return
	}
	team := room.TeamByConn(connID)
	if team == nil {
		return
	}
	if questionID < 0 || questionID >= len(room.Questions) {
		return
	}

	correct := answer == room.Questions[questionID].CorrectAnswer
	if !team.RecordAnswer(questionID, correct) {
		prev, _ := team.AnswerOutcome(questionID)
		e.out.ToConn(connID, events.New(roomID, events.TypeAnswerResult,
			events.AnswerResultPayload{QuestionID: questionID, Correct: prev, Duplicate: true}))
		return
	}

	log.Debug().
		Str("room_id", roomID).
		Str("team_id", team.ID).
		Int("question_id", questionID).
		Bool("correct", correct).
		Msg("answer submitted")

	e.out.ToConn(connID, events.New(roomID, events.TypeAnswerResult,
		events.AnswerResultPayload{QuestionID: questionID, Correct: correct}))
	e.out.ToConn(room.AdminConnID, events.New(roomID, events.TypeAnswerSubmitted,
		events.AnswerSubmittedPayload{TeamID: team.ID, Correct: correct}))
}

// Disconnect resolves a dropped connection to its room role. Losing the admin
// tears the room down immediately and unconditionally; losing a team removes
// it from the roster and notifies the admin.
func (e *Engine) Disconnect(connID string) {
	for _, room := range e.registry.Rooms() {
		room.Lock()

		if room.AdminConnID == connID {
			room.StopTimer()
			room.Status = quiz.StatusFinished
			e.out.ToRoom(room.ID, events.New(room.ID, events.TypeAdminLeft, nil))
			room.Unlock()

			e.registry.Remove(room.ID)
			log.Info().
				Str("room_id", room.ID).
				Str("connection_id", connID).
				Msg("admin disconnected, room destroyed")
			continue
		}

		if team := room.TeamByConn(connID); team != nil {
			room.RemoveTeam(team.ID)
			e.out.ToConn(room.AdminConnID, events.New(room.ID, events.TypeTeamLeft,
				events.TeamLeftPayload{TeamID: team.ID}))
			room.Unlock()

			log.Info().
				Str("room_id", room.ID).
				Str("team_id", team.ID).
				Msg("team disconnected")
			continue
		}

		room.Unlock()
	}
}

// questionPayload snapshots the current question window. Caller must hold the
// room lock.
func (e *Engine) questionPayload(room *quiz.Room) events.QuestionPayload {
	return events.QuestionPayload{
		Question:      room.Questions[room.CurrentIndex],
		Index:         room.CurrentIndex,
		Total:         len(room.Questions),
		RemainingTime: room.RemainingTime,
	}
}

func errCode(err error) string {
	switch err {
	case quiz.ErrNoCategories:
		return "no-categories"
	case quiz.ErrNoQuestions:
		return "no-questions"
	default:
		return "question-bank-load-failure"
	}
}
