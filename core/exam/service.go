// Package exam runs timed MCQ exams and untimed practice sets. The taker's
// standing on an exam is an explicit state machine; every registration
// precondition is checked server-side and the countdown runs server-side.
package exam

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/core/user"
	"github.com/eduprohq/edupro/storage/store"
)

var (
	// errors
	ErrNotFound         = errors.New("exam not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAlreadyAttended  = errors.New("exam already attended")
	ErrNotStarted       = errors.New("exam has not started yet")
	ErrEnded            = errors.New("exam has ended")
	ErrPracticeExam     = errors.New("practice sets cannot be registered for")
	ErrNotPracticeExam  = errors.New("not a practice set")
	ErrNoSession        = errors.New("no active exam session")
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrNoAttempt        = errors.New("no attempt for this exam")
)

type (
	// Ledger debits entry fees. Implemented by the wallet service.
	Ledger interface {
		DebitFee(ctx context.Context, uid string, amount int64) error
	}

	Service struct {
		store    store.Store
		ledger   Ledger
		logger   core.Logger
		validate *validator.Validate
		now      func() int64 // millis; swapped in tests

		sessMu   sync.Mutex
		sessions map[string]*Session
		regMu    map[string]*sync.Mutex
	}
)

func NewService(st store.Store, ledger Ledger, logger core.Logger, validate *validator.Validate) *Service {
	return &Service{
		store:    st,
		ledger:   ledger,
		logger:   logger,
		validate: validate,
		now:      core.NowMillis,
		sessions: make(map[string]*Session),
		regMu:    make(map[string]*sync.Mutex),
	}
}

// Publish creates a new exam. Exams are immutable once published; the only
// later operation is deletion.
func (svc *Service) Publish(ctx context.Context, ne NewExam) (Exam, error) {
	if err := ne.Validate(svc); err != nil {
		return Exam{}, err
	}

	exm := Exam{
		Title:     ne.Title,
		Questions: make([]Question, 0, len(ne.Questions)),
		Duration:  ne.Duration,
		StartTime: ne.StartTime,
		EndTime:   ne.EndTime,
		ExamFee:   ne.ExamFee,
		PrizeInfo: ne.PrizeInfo,
		Grade:     ne.Grade,
		Type:      ne.Type,
		Timestamp: svc.now(),
	}
	for i, nq := range ne.Questions {
		if nq.CorrectAnswer >= len(nq.Options) {
			return Exam{}, core.NewValidationError(errors.New("correct answer out of range"),
				core.FieldError{Field: "questions", Error: "correctAnswer must index an option"})
		}
		exm.Questions = append(exm.Questions, Question{
			ID:            questionID(i),
			Question:      nq.Question,
			ContentType:   nq.ContentType,
			Options:       nq.Options,
			CorrectAnswer: nq.CorrectAnswer,
			Hint:          nq.Hint,
			Explanation:   nq.Explanation,
			QuestionImage: nq.QuestionImage,
			OptionImages:  nq.OptionImages,
		})
	}

	id, err := svc.store.Push(ctx, "exams", exm)
	if err != nil {
		return Exam{}, err
	}
	exm.ID = id
	return exm, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.store.Delete(ctx, store.JoinPath("exams", id))
}

// Get returns the exam with its solutions. Admin use only.
func (svc *Service) Get(ctx context.Context, id string) (Exam, error) {
	raw, err := svc.store.Get(ctx, store.JoinPath("exams", id))
	if err != nil {
		return Exam{}, err
	}
	var exm Exam
	found, err := store.Decode(raw, &exm)
	if err != nil {
		return Exam{}, err
	}
	if !found {
		return Exam{}, ErrNotFound
	}
	exm.ID = id
	return exm, nil
}

// GetForTaker returns the exam as served to a taker: solutions are withheld
// until the exam's global end time has passed, regardless of the taker's own
// submission. Practice sets stay redacted; their feedback flows through
// PracticeCheck.
func (svc *Service) GetForTaker(ctx context.Context, id string) (Exam, error) {
	exm, err := svc.Get(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if exm.IsPractice() || svc.now() <= exm.EndTime {
		return exm.Redacted(), nil
	}
	return exm, nil
}

// List returns redacted fee'd exams, newest first. Practice sets are
// excluded; they live in PracticeList.
func (svc *Service) List(ctx context.Context, qf QueryFilter) ([]Exam, error) {
	return svc.list(ctx, qf, TypeExam)
}

// PracticeList returns redacted practice sets, newest first.
func (svc *Service) PracticeList(ctx context.Context, qf QueryFilter) ([]Exam, error) {
	return svc.list(ctx, qf, TypePractice)
}

// QueryAll returns every exam unredacted, newest first. Admin use only.
func (svc *Service) QueryAll(ctx context.Context) ([]Exam, error) {
	exams, err := svc.materialize(ctx, QueryFilter{}, "")
	if err != nil {
		return nil, err
	}
	return exams, nil
}

func (svc *Service) list(ctx context.Context, qf QueryFilter, typ string) ([]Exam, error) {
	exams, err := svc.materialize(ctx, qf, typ)
	if err != nil {
		return nil, err
	}
	now := svc.now()
	for i, exm := range exams {
		if exm.IsPractice() || now <= exm.EndTime {
			exams[i] = exm.Redacted()
		}
	}
	return exams, nil
}

func (svc *Service) materialize(ctx context.Context, qf QueryFilter, typ string) ([]Exam, error) {
	qf.Clean()

	raw, err := svc.store.Get(ctx, "exams")
	if err != nil {
		return nil, err
	}
	entries, err := store.DecodeMap(raw)
	if err != nil {
		return nil, err
	}

	exams := make([]Exam, 0, len(entries))
	search := strings.ToLower(qf.Search)
	for id, entry := range entries {
		var exm Exam
		if _, err = store.Decode(entry, &exm); err != nil {
			return nil, err
		}
		exm.ID = id
		if typ != "" && exm.Type != typ {
			continue
		}
		if qf.Grade != "" && exm.Grade != qf.Grade {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(exm.Title), search) {
			continue
		}
		exams = append(exams, exm)
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].Timestamp > exams[j].Timestamp })
	return exams, nil
}

// Register enters a taker into a fee'd exam. All four preconditions are
// checked here: no prior attempt, the time window both ways, and a balance
// covering the fee. Registrations are serialized per (exam, taker) so the
// fee is debited exactly once; a duplicate request rejoins the running
// session. On success a server-side countdown of the exam's duration
// starts, anchored at the time the fee was paid.
func (svc *Service) Register(ctx context.Context, usr user.User, examID string, reg Registration) (*Session, error) {
	if err := reg.Validate(svc); err != nil {
		return nil, err
	}

	exm, err := svc.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exm.IsPractice() {
		return nil, ErrPracticeExam
	}

	mu := svc.registerLock(examID, usr.UID)
	mu.Lock()
	defer mu.Unlock()

	if sess := svc.session(examID, usr.UID); sess != nil {
		if sess.State() == StateSubmitted {
			return nil, ErrAlreadyAttended
		}
		return sess, nil // already registered, rejoin the running session
	}

	if _, err = svc.Attempt(ctx, examID, usr.UID); err == nil {
		return nil, ErrAlreadyAttended
	} else if !errors.Is(err, ErrNoAttempt) {
		return nil, err
	}

	now := svc.now()
	if now < exm.StartTime {
		return nil, ErrNotStarted
	}
	if now > exm.EndTime {
		return nil, ErrEnded
	}

	marker, found, err := svc.registration(ctx, examID, usr.UID)
	if err != nil {
		return nil, err
	}
	if found {
		// the fee was paid by an earlier registration whose session was
		// lost; resume its countdown instead of charging again
		reg = Registration{Name: marker.Name, Roll: marker.Roll, StudentClass: marker.StudentClass}
	} else {
		if err = svc.ledger.DebitFee(ctx, usr.UID, exm.ExamFee); err != nil {
			return nil, err
		}
		marker = registrationMarker{Name: reg.Name, Roll: reg.Roll, StudentClass: reg.StudentClass, Timestamp: now}
		if err = svc.store.Set(ctx, registrationPath(examID, usr.UID), marker); err != nil {
			return nil, err
		}
	}

	duration := time.Duration(exm.Duration) * time.Minute
	sess := newSession(examID, usr.UID, reg, marker.Timestamp+duration.Milliseconds())

	svc.sessMu.Lock()
	svc.sessions[sessionKey(examID, usr.UID)] = sess
	svc.sessMu.Unlock()

	sess.timer = time.AfterFunc(time.Duration(sess.EndsAt-now)*time.Millisecond, func() {
		if _, err := svc.submit(context.Background(), sess); err != nil {
			svc.logger.Error("auto-submitting expired exam session", err)
		}
	})
	return sess, nil
}

// registerLock returns the mutex serializing registration flows for one
// (exam, taker) pair. Entries are never reaped; they are tiny and bounded
// by the takers a process actually sees.
func (svc *Service) registerLock(examID, uid string) *sync.Mutex {
	svc.sessMu.Lock()
	defer svc.sessMu.Unlock()
	key := sessionKey(examID, uid)
	mu, ok := svc.regMu[key]
	if !ok {
		mu = new(sync.Mutex)
		svc.regMu[key] = mu
	}
	return mu
}

func (svc *Service) registration(ctx context.Context, examID, uid string) (registrationMarker, bool, error) {
	var marker registrationMarker
	raw, err := svc.store.Get(ctx, registrationPath(examID, uid))
	if err != nil {
		return marker, false, err
	}
	found, err := store.Decode(raw, &marker)
	return marker, found, err
}

func registrationPath(examID, uid string) string {
	return store.JoinPath("exam_registrations", examID, uid)
}

// Answer records the taker's pick for a question on their running session.
func (svc *Service) Answer(ctx context.Context, examID, uid, questionID string, optionIndex int) error {
	sess := svc.session(examID, uid)
	if sess == nil {
		return ErrNoSession
	}
	return sess.Answer(questionID, optionIndex)
}

// Submit finalizes the taker's session. Submission is idempotent: the
// countdown and a manual submit share one guarded path, so the second
// caller observes the first caller's attempt.
func (svc *Service) Submit(ctx context.Context, examID, uid string) (Attempt, error) {
	sess := svc.session(examID, uid)
	if sess == nil {
		// session already finalized and reaped; serve the persisted attempt
		att, err := svc.Attempt(ctx, examID, uid)
		if errors.Is(err, ErrNoAttempt) {
			return Attempt{}, ErrNoSession
		}
		return att, err
	}
	return svc.submit(ctx, sess)
}

func (svc *Service) submit(ctx context.Context, sess *Session) (Attempt, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	attemptPath := store.JoinPath("exam_attempts", sess.ExamID, sess.UID)
	if sess.submitted {
		var att Attempt
		raw, err := svc.store.Get(ctx, attemptPath)
		if err != nil {
			return Attempt{}, err
		}
		if _, err = store.Decode(raw, &att); err != nil {
			return Attempt{}, err
		}
		return att, nil
	}

	exm, err := svc.Get(ctx, sess.ExamID)
	if err != nil {
		return Attempt{}, err
	}

	att := Attempt{
		UID:          sess.UID,
		Name:         sess.Name,
		Roll:         sess.Roll,
		StudentClass: sess.StudentClass,
		Score:        exm.Score(sess.answers),
		Timestamp:    svc.now(),
	}
	err = svc.store.Transact(ctx, attemptPath, func(cur json.RawMessage) (interface{}, error) {
		// first write wins; an attempt is never overwritten
		var existing Attempt
		if found, err := store.Decode(cur, &existing); err != nil {
			return nil, err
		} else if found {
			att = existing
			return existing, nil
		}
		return att, nil
	})
	if err != nil {
		return Attempt{}, err
	}

	sess.submitted = true
	if sess.timer != nil {
		sess.timer.Stop()
	}

	svc.sessMu.Lock()
	delete(svc.sessions, sessionKey(sess.ExamID, sess.UID))
	svc.sessMu.Unlock()

	// the attempt document takes over as the durable record
	if err = svc.store.Delete(ctx, registrationPath(sess.ExamID, sess.UID)); err != nil {
		svc.logger.Error("clearing registration marker", err)
	}

	return att, nil
}

// Attempt returns the taker's persisted attempt for the exam.
func (svc *Service) Attempt(ctx context.Context, examID, uid string) (Attempt, error) {
	raw, err := svc.store.Get(ctx, store.JoinPath("exam_attempts", examID, uid))
	if err != nil {
		return Attempt{}, err
	}
	var att Attempt
	found, err := store.Decode(raw, &att)
	if err != nil {
		return Attempt{}, err
	}
	if !found {
		return Attempt{}, ErrNoAttempt
	}
	return att, nil
}

// State reports the taker's standing on the exam.
func (svc *Service) State(ctx context.Context, examID, uid string) (State, error) {
	if sess := svc.session(examID, uid); sess != nil {
		return sess.State(), nil
	}
	if _, err := svc.Attempt(ctx, examID, uid); err == nil {
		return StateAlreadyAttended, nil
	} else if !errors.Is(err, ErrNoAttempt) {
		return "", err
	}
	// a paid registration without a live session is still registered; the
	// taker rejoins it through Register
	if _, found, err := svc.registration(ctx, examID, uid); err != nil {
		return "", err
	} else if found {
		return StateRegistered, nil
	}
	return StateUnregistered, nil
}

// Participants lists an exam's attempts, highest score first; ties go to
// the earlier submission.
func (svc *Service) Participants(ctx context.Context, examID string) ([]Attempt, error) {
	raw, err := svc.store.Get(ctx, store.JoinPath("exam_attempts", examID))
	if err != nil {
		return nil, err
	}
	entries, err := store.DecodeMap(raw)
	if err != nil {
		return nil, err
	}

	atts := make([]Attempt, 0, len(entries))
	for _, entry := range entries {
		var att Attempt
		if _, err = store.Decode(entry, &att); err != nil {
			return nil, err
		}
		atts = append(atts, att)
	}
	sort.Slice(atts, func(i, j int) bool {
		if atts[i].Score != atts[j].Score {
			return atts[i].Score > atts[j].Score
		}
		return atts[i].Timestamp < atts[j].Timestamp
	})
	return atts, nil
}

// PracticeCheck grades a single practice answer immediately. Nothing is
// persisted; no fee, no timer, no attempt.
func (svc *Service) PracticeCheck(ctx context.Context, examID, questionID string, optionIndex int) (CheckResult, error) {
	exm, err := svc.Get(ctx, examID)
	if err != nil {
		return CheckResult{}, err
	}
	if !exm.IsPractice() {
		return CheckResult{}, ErrNotPracticeExam
	}
	for _, q := range exm.Questions {
		if q.ID == questionID {
			return CheckResult{
				Correct:       optionIndex == q.CorrectAnswer,
				CorrectAnswer: q.CorrectAnswer,
				Hint:          q.Hint,
				Explanation:   q.Explanation,
			}, nil
		}
	}
	return CheckResult{}, ErrQuestionNotFound
}

func (svc *Service) session(examID, uid string) *Session {
	svc.sessMu.Lock()
	defer svc.sessMu.Unlock()
	return svc.sessions[sessionKey(examID, uid)]
}

func sessionKey(examID, uid string) string { return examID + "/" + uid }

func questionID(i int) string { return "q" + strconv.Itoa(i+1) }
