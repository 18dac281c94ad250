package quiz

import (
	"slices"
	"sync"
)

// RoomStatus is the lifecycle state of a room's exam.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusActive   RoomStatus = "active"
	StatusPaused   RoomStatus = "paused"
	StatusFinished RoomStatus = "finished"
)

// Question is a single exam question. IDs are assigned sequentially when an
// exam starts and are the canonical key for answer submission; the
// authoring-time ordering in the corpus carries no meaning here.
type Question struct {
	ID       int      `json:"id"`
	Category string   `json:"category"`
	Text     string   `json:"text"`
	Options  []string `json:"options,omitempty"`

	// CorrectAnswer is never serialized to clients.
	CorrectAnswer string `json:"-"`
}

// Team is one participant group. The team id is the stable identity that
// survives reconnects; ConnectionID is the transient transport binding and is
// reassigned whenever the team rejoins. Teams are guarded by their room's
// lock and never leave the engine directly; TeamView is the serialized form.
type Team struct {
	ID           string
	Name         string
	MemberCount  int
	Members      []string
	ConnectionID string
	Score        int

	answered map[int]bool
}

// TeamView is a detached copy of a team's client-visible state. Views are
// taken while the room lock is held and are safe to marshal after it is
// released.
type TeamView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	MemberCount int      `json:"member_count"`
	Members     []string `json:"members,omitempty"`
	Score       int      `json:"score"`
}

// View snapshots the team. Caller must hold the room lock.
func (t *Team) View() TeamView {
	return TeamView{
		ID:          t.ID,
		Name:        t.Name,
		MemberCount: t.MemberCount,
		Members:     slices.Clone(t.Members),
		Score:       t.Score,
	}
}

// RecordAnswer records the team's first submission for a question. Repeat
// submissions for the same question never re-score; counted reports whether
// this call was the one that got recorded.
func (t *Team) RecordAnswer(questionID int, correct bool) (counted bool) {
	if t.answered == nil {
		t.answered = make(map[int]bool)
	}
	if _, dup := t.answered[questionID]; dup {
		return false
	}
	t.answered[questionID] = correct
	if correct {
		t.Score++
	}
	return true
}

// AnswerOutcome returns the recorded outcome for a question, if any.
func (t *Team) AnswerOutcome(questionID int) (correct, answered bool) {
	correct, answered = t.answered[questionID]
	return correct, answered
}

// ResetExam clears the team's score and answer history for a fresh exam.
func (t *Team) ResetExam() {
	t.Score = 0
	t.answered = nil
}

// TimerHandle is a room's ownership of its single live countdown. Cancel must
// be idempotent.
type TimerHandle interface {
	Cancel()
}

// Room is one isolated quiz session. All fields below the mutex are guarded
// by it; callers lock the room for the full duration of an event handler so
// that handlers for the same room serialize while distinct rooms proceed in
// parallel.
type Room struct {
	mu sync.Mutex

	ID          string
	AdminConnID string
	AdminToken  string
	Status      RoomStatus

	Teams []*Team

	Questions       []Question
	CurrentIndex    int
	TimePerQuestion int
	RemainingTime   int

	timer TimerHandle
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// SwapTimer installs a new countdown handle, cancelling any live one first.
// At most one timer is live per room at any instant.
func (r *Room) SwapTimer(h TimerHandle) {
	if r.timer != nil {
		r.timer.Cancel()
	}
	r.timer = h
}

// StopTimer cancels and clears the live countdown, if any. Safe to call when
// no timer is armed.
func (r *Room) StopTimer() {
	if r.timer != nil {
		r.timer.Cancel()
		r.timer = nil
	}
}

// TimerIs reports whether h is still the room's current countdown. Ticks from
// a superseded countdown use this to detect they are stale.
func (r *Room) TimerIs(h TimerHandle) bool {
	return r.timer != nil && r.timer == h
}

// TeamViews snapshots the roster. Caller must hold the room lock.
func (r *Room) TeamViews() []TeamView {
	views := make([]TeamView, len(r.Teams))
	for i, t := range r.Teams {
		views[i] = t.View()
	}
	return views
}

// TeamByID returns the team with the given stable id.
func (r *Room) TeamByID(id string) *Team {
	for _, t := range r.Teams {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// TeamByConn returns the team currently bound to a connection.
func (r *Room) TeamByConn(connID string) *Team {
	for _, t := range r.Teams {
		if t.ConnectionID == connID {
			return t
		}
	}
	return nil
}

// RemoveTeam drops a team from the roster, preserving join order of the rest.
func (r *Room) RemoveTeam(id string) {
	for i, t := range r.Teams {
		if t.ID == id {
			r.Teams = append(r.Teams[:i], r.Teams[i+1:]...)
			return
		}
	}
}
