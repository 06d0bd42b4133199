package exam

import (
	"github.com/volatiletech/null/v8"

	"github.com/eduprohq/edupro/core"
)

// Exam types
const (
	TypeExam     = "exam"
	TypePractice = "practice"
)

type (
	// Question is embedded in its exam; it never exists on its own.
	Question struct {
		ID            string           `json:"id"`
		Question      string           `json:"question"`
		ContentType   core.ContentType `json:"contentType"`
		Options       []string         `json:"options"`
		CorrectAnswer int              `json:"correctAnswer"`
		Hint          string           `json:"hint,omitempty"`
		Explanation   string           `json:"explanation,omitempty"`
		QuestionImage string           `json:"questionImage,omitempty"`
		OptionImages  []string         `json:"optionImages,omitempty"`
	}

	// Exam lives at exams/{id}. Immutable once published except deletion.
	Exam struct {
		ID        string     `json:"id"`
		Title     string     `json:"title"`
		Questions []Question `json:"questions"`
		Duration  int        `json:"duration"` // minutes
		StartTime int64      `json:"startTime"`
		EndTime   int64      `json:"endTime"`
		ExamFee   int64      `json:"examFee"`
		PrizeInfo string     `json:"prizeInfo,omitempty"`
		Grade     core.Grade `json:"grade"`
		Type      string     `json:"type"`
		Timestamp int64      `json:"timestamp"`
	}

	// Attempt lives at exam_attempts/{examId}/{uid}, written exactly once at
	// final submission. PrizeAwarded is set at most once by an admin.
	Attempt struct {
		UID          string     `json:"uid"`
		Name         string     `json:"name"`
		Roll         string     `json:"roll"`
		StudentClass string     `json:"studentClass"`
		Score        int        `json:"score"`
		Timestamp    int64      `json:"timestamp"`
		PrizeAwarded null.Int64 `json:"prizeAwarded,omitempty"`
	}
)

func (e *Exam) IsPractice() bool { return e.Type == TypePractice }

// Redacted strips solution fields from every question. Served to takers
// until the exam's global end time has passed.
func (e Exam) Redacted() Exam {
	qs := make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		q.CorrectAnswer = -1
		q.Hint = ""
		q.Explanation = ""
		qs[i] = q
	}
	e.Questions = qs
	return e
}

// Score counts the questions whose selected option index equals the correct
// one. Unanswered questions never match.
func (e *Exam) Score(answers map[string]int) int {
	var score int
	for _, q := range e.Questions {
		if picked, ok := answers[q.ID]; ok && picked == q.CorrectAnswer {
			score++
		}
	}
	return score
}

// NewQuestion contains information needed to embed a question in a new exam.
type NewQuestion struct {
	Question      string           `json:"question" validate:"required"`
	ContentType   core.ContentType `json:"contentType" validate:"required,contenttype"`
	Options       []string         `json:"options" validate:"required,min=2,dive,required"`
	CorrectAnswer int              `json:"correctAnswer" validate:"gte=0"`
	Hint          string           `json:"hint"`
	Explanation   string           `json:"explanation"`
	QuestionImage string           `json:"questionImage" validate:"omitempty,url"`
	OptionImages  []string         `json:"optionImages" validate:"omitempty,dive,url"`
}

// NewExam contains information needed to publish a new Exam.
type NewExam struct {
	Title     string        `json:"title" validate:"required"`
	Questions []NewQuestion `json:"questions" validate:"required,min=1,dive"`
	Duration  int           `json:"duration" validate:"required,min=1"`
	StartTime int64         `json:"startTime" validate:"required"`
	EndTime   int64         `json:"endTime" validate:"required,gtfield=StartTime"`
	ExamFee   int64         `json:"examFee" validate:"gte=0"`
	PrizeInfo string        `json:"prizeInfo"`
	Grade     core.Grade    `json:"grade" validate:"required,grade"`
	Type      string        `json:"type" validate:"required,oneof=exam practice"`
}

func (ne *NewExam) Validate(svc *Service) error {
	ne.Title = core.CleanString(ne.Title)
	return svc.validate.Struct(ne)
}

// Registration carries the identity fields the taker fills in before an
// exam; they are copied onto the final attempt.
type Registration struct {
	Name         string `json:"name" validate:"required"`
	Roll         string `json:"roll" validate:"required"`
	StudentClass string `json:"studentClass" validate:"required"`
}

func (r *Registration) Validate(svc *Service) error {
	r.Name = core.CleanString(r.Name)
	r.Roll = core.CleanString(r.Roll)
	r.StudentClass = core.CleanString(r.StudentClass)
	return svc.validate.Struct(r)
}

type QueryFilter struct {
	Grade  core.Grade `query:"grade"`
	Search string     `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// CheckResult is the immediate per-question feedback of practice mode.
type CheckResult struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer int    `json:"correctAnswer"`
	Hint          string `json:"hint,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
}
