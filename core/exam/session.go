package exam

import (
	"sync"
	"time"
)

// State is the taker's standing on a given exam. One enum, no boolean
// clusters; transitions are one-way.
type State string

const (
	StateUnregistered    State = "unregistered"
	StateAlreadyAttended State = "already_attended"
	StateRegistered      State = "registered"
	StateSubmitted       State = "submitted"
)

// Session is a live registration: the taker's mutable answer sheet plus the
// server-side countdown. It exists only between registration and
// submission; the attempt document is its durable outcome.
type Session struct {
	ExamID       string
	UID          string
	Name         string
	Roll         string
	StudentClass string
	EndsAt       int64 // millis; 0 when the exam has no countdown

	mu        sync.Mutex
	answers   map[string]int
	submitted bool
	timer     *time.Timer
}

// registrationMarker is the durable trace of a paid registration, stored at
// exam_registrations/{examID}/{uid}. It outlives the in-memory session so a
// process restart cannot charge the taker a second time; the attempt write
// clears it.
type registrationMarker struct {
	Name         string `json:"name"`
	Roll         string `json:"roll"`
	StudentClass string `json:"studentClass"`
	Timestamp    int64  `json:"timestamp"`
}

func newSession(examID, uid string, reg Registration, endsAt int64) *Session {
	return &Session{
		ExamID:       examID,
		UID:          uid,
		Name:         reg.Name,
		Roll:         reg.Roll,
		StudentClass: reg.StudentClass,
		EndsAt:       endsAt,
		answers:      make(map[string]int),
	}
}

// Answer records the selected option for a question, overwriting any
// earlier pick.
func (s *Session) Answer(questionID string, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return ErrAlreadySubmitted
	}
	s.answers[questionID] = optionIndex
	return nil
}

// Answers snapshots the current answer sheet.
func (s *Session) Answers() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.answers))
	for q, a := range s.answers {
		out[q] = a
	}
	return out
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return StateSubmitted
	}
	return StateRegistered
}
