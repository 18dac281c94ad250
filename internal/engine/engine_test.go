package engine

import (
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/quizlive/quizlive/internal/bank"
	"github.com/quizlive/quizlive/internal/events"
	"github.com/quizlive/quizlive/internal/quiz"
)

// delivery records one emitted event with its addressing: roomID set for
// room-wide fan-out, connID set for direct delivery.
type delivery struct {
	roomID string
	connID string
	ev     *events.Event
}

// capture is a Broadcaster that records every delivery.
type capture struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (c *capture) ToRoom(roomID string, ev *events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries = append(c.deliveries, delivery{roomID: roomID, ev: ev})
}

func (c *capture) ToConn(connID string, ev *events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries = append(c.deliveries, delivery{connID: connID, ev: ev})
}

func (c *capture) ofType(t events.Type) []delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []delivery
	for _, d := range c.deliveries {
		if d.ev.Type == t {
			out = append(out, d)
		}
	}
	return out
}

func (c *capture) last(t events.Type) (delivery, bool) {
	all := c.ofType(t)
	if len(all) == 0 {
		return delivery{}, false
	}
	return all[len(all)-1], true
}

func (c *capture) count(t events.Type) int {
	return len(c.ofType(t))
}

func testBank() *bank.Bank {
	return bank.New([]bank.Entry{
		{Category: "math", Text: "2+2?", Answer: "4"},
		{Category: "math", Text: "3*3?", Answer: "9"},
		{Category: "science", Text: "H2O?", Answer: "water"},
	})
}

func newTestEngine(t *testing.T) (*Engine, *quiz.Registry, *capture, *clockwork.FakeClock) {
	t.Helper()
	registry := quiz.NewRegistry()
	out := &capture{}
	clock := clockwork.NewFakeClock()
	return New(registry, testBank(), out, clock), registry, out, clock
}

// setupExam creates room R1 with admin connection "admin-conn", joins team
// T1 on "team-conn", and starts a 2-question math exam.
func setupExam(t *testing.T, e *Engine) {
	t.Helper()
	e.CreateRoom("admin-conn", "R1")
	e.JoinRoom("team-conn", "R1", JoinClaim{Team: &TeamInfo{ID: "T1", Name: "Alpha", MemberCount: 3}})
	e.StartExam("admin-conn", "R1", Settings{
		Categories:      []string{"math"},
		QuestionCount:   2,
		TimePerQuestion: 30,
	})
}

func currentQuestion(t *testing.T, d delivery) events.QuestionPayload {
	t.Helper()
	payload, ok := d.ev.Data.(events.QuestionPayload)
	if !ok {
		t.Fatalf("expected QuestionPayload, got %T", d.ev.Data)
	}
	return payload
}

func TestCreateRoom(t *testing.T) {
	e, registry, out, _ := newTestEngine(t)

	e.CreateRoom("admin-conn", "R1")

	d, ok := out.last(events.TypeRoomCreated)
	if !ok {
		t.Fatalf("expected room-created event")
	}
	if d.connID != "admin-conn" {
		t.Fatalf("expected room-created sent to creator, got conn %q", d.connID)
	}
	payload := d.ev.Data.(events.RoomCreatedPayload)
	if payload.RoomID != "R1" || payload.AdminToken == "" {
		t.Fatalf("expected room id and admin token in payload, got %+v", payload)
	}

	room, ok := registry.Get("R1")
	if !ok {
		t.Fatalf("expected room in registry")
	}
	if room.AdminConnID != "admin-conn" {
		t.Fatalf("expected creator bound as admin, got %q", room.AdminConnID)
	}

	// Creating the same room id again reports a duplicate to the caller.
	e.CreateRoom("other-conn", "R1")
	d, ok = out.last(events.TypeRoomError)
	if !ok || d.connID != "other-conn" {
		t.Fatalf("expected room-error to second creator")
	}
	if code := d.ev.Data.(events.ErrorPayload).Code; code != "duplicate-room" {
		t.Fatalf("expected duplicate-room code, got %q", code)
	}
}

func TestExamLifecycleScenario(t *testing.T) {
	e, registry, out, _ := newTestEngine(t)
	setupExam(t, e)

	started, ok := out.last(events.TypeExamStarted)
	if !ok || started.roomID != "R1" {
		t.Fatalf("expected room-wide exam-started")
	}
	first := currentQuestion(t, started)
	if first.Index != 0 || first.Total != 2 || first.RemainingTime != 30 {
		t.Fatalf("unexpected first question window: %+v", first)
	}
	if first.Question.ID != 0 {
		t.Fatalf("expected question ids assigned from 0, got %d", first.Question.ID)
	}

	// Correct submission scores exactly once.
	e.SubmitAnswer("team-conn", "R1", 0, first.Question.CorrectAnswer)
	result, ok := out.last(events.TypeAnswerResult)
	if !ok || result.connID != "team-conn" {
		t.Fatalf("expected answer-result to submitter")
	}
	if p := result.ev.Data.(events.AnswerResultPayload); !p.Correct || p.Duplicate {
		t.Fatalf("expected correct first submission, got %+v", p)
	}
	admin, ok := out.last(events.TypeAnswerSubmitted)
	if !ok || admin.connID != "admin-conn" {
		t.Fatalf("expected answer-submitted to admin")
	}

	room, _ := registry.Get("R1")
	room.Lock()
	score := room.TeamByID("T1").Score
	room.Unlock()
	if score != 1 {
		t.Fatalf("expected team score 1, got %d", score)
	}

	// Resubmission never double-counts.
	e.SubmitAnswer("team-conn", "R1", 0, first.Question.CorrectAnswer)
	result, _ = out.last(events.TypeAnswerResult)
	if p := result.ev.Data.(events.AnswerResultPayload); !p.Duplicate || !p.Correct {
		t.Fatalf("expected duplicate reply with recorded outcome, got %+v", p)
	}
	room.Lock()
	score = room.TeamByID("T1").Score
	room.Unlock()
	if score != 1 {
		t.Fatalf("expected score unchanged after resubmission, got %d", score)
	}
	if out.count(events.TypeAnswerSubmitted) != 1 {
		t.Fatalf("expected admin notified only for counted submissions")
	}

	// Advance to the second question.
	e.NextQuestion("admin-conn", "R1")
	next, ok := out.last(events.TypeQuestion)
	if !ok || next.roomID != "R1" {
		t.Fatalf("expected room-wide question event")
	}
	if q := currentQuestion(t, next); q.Index != 1 || q.RemainingTime != 30 {
		t.Fatalf("unexpected second question window: %+v", q)
	}

	// Exhausting the set finishes the exam exactly once.
	e.NextQuestion("admin-conn", "R1")
	finished, ok := out.last(events.TypeExamFinished)
	if !ok || finished.roomID != "R1" {
		t.Fatalf("expected room-wide exam-finished")
	}
	standings := finished.ev.Data.(events.ExamFinishedPayload)
	if len(standings.Teams) != 1 || standings.Teams[0].ID != "T1" || standings.Teams[0].Score != 1 {
		t.Fatalf("unexpected final standings: %+v", standings.Teams)
	}

	questionsBefore := out.count(events.TypeQuestion)
	e.NextQuestion("admin-conn", "R1")
	if out.count(events.TypeExamFinished) != 1 {
		t.Fatalf("expected exam-finished emitted exactly once")
	}
	if out.count(events.TypeQuestion) != questionsBefore {
		t.Fatalf("expected no question emitted after exhaustion")
	}
}

func TestJoinRoomUnknownRoom(t *testing.T) {
	e, _, out, _ := newTestEngine(t)

	e.JoinRoom("conn", "nope", JoinClaim{Team: &TeamInfo{ID: "T1"}})

	d, ok := out.last(events.TypeRoomError)
	if !ok || d.connID != "conn" {
		t.Fatalf("expected room-error to caller")
	}
	if code := d.ev.Data.(events.ErrorPayload).Code; code != "room-not-found" {
		t.Fatalf("expected room-not-found code, got %q", code)
	}
}

func TestJoinAsAdminRejectedWithoutToken(t *testing.T) {
	e, registry, out, _ := newTestEngine(t)
	e.CreateRoom("admin-conn", "R1")

	e.JoinRoom("intruder", "R1", JoinClaim{IsAdmin: true})

	d, ok := out.last(events.TypeRoomError)
	if !ok || d.connID != "intruder" {
		t.Fatalf("expected room-error to intruder")
	}
	if code := d.ev.Data.(events.ErrorPayload).Code; code != "not-admin" {
		t.Fatalf("expected not-admin code, got %q", code)
	}

	room, _ := registry.Get("R1")
	room.Lock()
	defer room.Unlock()
	if room.AdminConnID != "admin-conn" {
		t.Fatalf("expected admin binding unchanged, got %q", room.AdminConnID)
	}
}

func TestAdminReconnectWithToken(t *testing.T) {
	e, registry, out, _ := newTestEngine(t)
	setupExam(t, e)

	created, _ := out.last(events.TypeRoomCreated)
	token := created.ev.Data.(events.RoomCreatedPayload).AdminToken

	e.JoinRoom("admin-conn-2", "R1", JoinClaim{IsAdmin: true, AdminToken: token})

	joined, ok := out.last(events.TypeRoomJoined)
	if !ok || joined.connID != "admin-conn-2" {
		t.Fatalf("expected room-joined to reconnected admin")
	}
	if p := joined.ev.Data.(events.RoomJoinedPayload); !p.IsAdmin {
		t.Fatalf("expected admin join confirmation, got %+v", p)
	}

	snapshot, ok := out.last(events.TypeTeamsInit)
	if !ok || snapshot.connID != "admin-conn-2" {
		t.Fatalf("expected teams-init snapshot to reconnected admin")
	}

	// Mid-exam the current question window is replayed to the new connection.
	replay, ok := out.last(events.TypeQuestion)
	if !ok || replay.connID != "admin-conn-2" {
		t.Fatalf("expected question replay to reconnected admin")
	}
	if q := currentQuestion(t, replay); q.Index != 0 || q.Total != 2 {
		t.Fatalf("unexpected replayed window: %+v", q)
	}

	room, _ := registry.Get("R1")
	room.Lock()
	defer room.Unlock()
	if room.AdminConnID != "admin-conn-2" {
		t.Fatalf("expected admin rebound to new connection")
	}
}

func TestTeamReconnectPreservesScore(t *testing.T) {
	e, registry, out, _ := newTestEngine(t)
	setupExam(t, e)

	started, _ := out.last(events.TypeExamStarted)
	q := currentQuestion(t, started)
	e.SubmitAnswer("team-conn", "R1", 0, q.Question.CorrectAnswer)

	e.JoinRoom("team-conn-2", "R1", JoinClaim{Team: &TeamInfo{ID: "T1", Name: "Alpha"}})

	rejoined, ok := out.last(events.TypeTeamJoined)
	if !ok || rejoined.connID != "admin-conn" {
		t.Fatalf("expected team-joined notification to admin")
	}
	if p := rejoined.ev.Data.(events.TeamJoinedPayload); !p.Reconnect {
		t.Fatalf("expected reconnect flag on rejoin")
	}

	room, _ := registry.Get("R1")
	room.Lock()
	defer room.Unlock()
	if len(room.Teams) != 1 {
		t.Fatalf("expected no duplicate roster entry, got %d teams", len(room.Teams))
	}
	team := room.TeamByID("T1")
	if team.ConnectionID != "team-conn-2" {
		t.Fatalf("expected connection rebound, got %q", team.ConnectionID)
	}
	if team.Score != 1 {
		t.Fatalf("expected score preserved across reconnect, got %d", team.Score)
	}
}

func TestStartExamErrors(t *testing.T) {
	e, _, out, _ := newTestEngine(t)
	e.CreateRoom("admin-conn", "R1")

	tests := []struct {
		name     string
		settings Settings
		code     string
	}{
		{
			name:     "no categories selected",
			settings: Settings{QuestionCount: 2},
			code:     "no-categories",
		},
		{
			name:     "no questions in categories",
			settings: Settings{Categories: []string{"geography"}, QuestionCount: 2},
			code:     "no-questions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.StartExam("admin-conn", "R1", tt.settings)
			d, ok := out.last(events.TypeExamError)
			if !ok || d.connID != "admin-conn" {
				t.Fatalf("expected exam-error to admin")
			}
			if code := d.ev.Data.(events.ErrorPayload).Code; code != tt.code {
				t.Fatalf("expected code %q, got %q", tt.code, code)
			}
		})
	}

	if out.count(events.TypeExamStarted) != 0 {
		t.Fatalf("expected no exam started")
	}
}

func TestStartExamIgnoresNonAdmin(t *testing.T) {
	e, _, out, _ := newTestEngine(t)
	e.CreateRoom("admin-conn", "R1")
	e.JoinRoom("team-conn", "R1", JoinClaim{Team: &TeamInfo{ID: "T1"}})

	e.StartExam("team-conn", "R1", Settings{Categories: []string{"math"}, QuestionCount: 1})

	if out.count(events.TypeExamStarted) != 0 || out.count(events.TypeExamError) != 0 {
		t.Fatalf("expected non-admin start to be silently ignored")
	}
}

func TestSubmitAnswerIgnoredWhileNotActive(t *testing.T) {
	e, registry, out, _ := newTestEngine(t)
	e.CreateRoom("admin-conn", "R1")
	e.JoinRoom("team-conn", "R1", JoinClaim{Team: &TeamInfo{ID: "T1"}})

	e.SubmitAnswer("team-conn", "R1", 0, "4")

	if out.count(events.TypeAnswerResult) != 0 {
		t.Fatalf("expected submission outside a question window to be ignored")
	}
	room, _ := registry.Get("R1")
	room.Lock()
	defer room.Unlock()
	if room.TeamByID("T1").Score != 0 {
		t.Fatalf("expected score untouched")
	}
}

func TestEmittedTeamPayloadsAreSnapshots(t *testing.T) {
	e, registry, out, _ := newTestEngine(t)
	setupExam(t, e)

	joined, ok := out.last(events.TypeTeamJoined)
	if !ok {
		t.Fatalf("expected team-joined event")
	}
	if score := joined.ev.Data.(events.TeamJoinedPayload).Team.Score; score != 0 {
		t.Fatalf("expected fresh team at score 0, got %d", score)
	}

	e.JoinRoom("admin-conn", "R1", JoinClaim{IsAdmin: true})
	snapshot, ok := out.last(events.TypeTeamsInit)
	if !ok {
		t.Fatalf("expected teams-init event")
	}

	started, _ := out.last(events.TypeExamStarted)
	q := currentQuestion(t, started)
	e.SubmitAnswer("team-conn", "R1", 0, q.Question.CorrectAnswer)

	room, _ := registry.Get("R1")
	room.Lock()
	live := room.TeamByID("T1").Score
	room.Unlock()
	if live != 1 {
		t.Fatalf("expected live score 1, got %d", live)
	}

	// Payloads emitted before the submission carry detached copies; scoring
	// must not reach into events already queued for marshaling.
	if score := joined.ev.Data.(events.TeamJoinedPayload).Team.Score; score != 0 {
		t.Fatalf("team-joined payload mutated after emit: score %d", score)
	}
	roster := snapshot.ev.Data.(events.TeamsInitPayload).Teams
	if len(roster) != 1 || roster[0].Score != 0 {
		t.Fatalf("teams-init payload mutated after emit: %+v", roster)
	}
}

func TestAdminDisconnectDestroysRoom(t *testing.T) {
	e, registry, out, _ := newTestEngine(t)
	setupExam(t, e)

	e.Disconnect("admin-conn")

	d, ok := out.last(events.TypeAdminLeft)
	if !ok || d.roomID != "R1" {
		t.Fatalf("expected room-wide admin-left")
	}
	if _, ok := registry.Get("R1"); ok {
		t.Fatalf("expected room removed from registry")
	}

	// Subsequent operations referencing the room report room-not-found or
	// no-op silently.
	e.JoinRoom("team-conn-2", "R1", JoinClaim{Team: &TeamInfo{ID: "T2"}})
	errEv, ok := out.last(events.TypeRoomError)
	if !ok || errEv.ev.Data.(events.ErrorPayload).Code != "room-not-found" {
		t.Fatalf("expected room-not-found after teardown")
	}
	e.NextQuestion("admin-conn", "R1")
	if out.count(events.TypeQuestion) != 0 {
		t.Fatalf("expected no question events after teardown")
	}
}

func TestTeamDisconnectNotifiesAdmin(t *testing.T) {
	e, registry, out, _ := newTestEngine(t)
	setupExam(t, e)

	e.Disconnect("team-conn")

	d, ok := out.last(events.TypeTeamLeft)
	if !ok || d.connID != "admin-conn" {
		t.Fatalf("expected team-left sent to admin")
	}
	if p := d.ev.Data.(events.TeamLeftPayload); p.TeamID != "T1" {
		t.Fatalf("expected team T1 reported, got %q", p.TeamID)
	}

	room, _ := registry.Get("R1")
	room.Lock()
	defer room.Unlock()
	if len(room.Teams) != 0 {
		t.Fatalf("expected empty roster after team disconnect")
	}
}
