package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	echoapi "github.com/eduprohq/edupro/apps/api/echo"
	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/core/exam"
	testutil "github.com/eduprohq/edupro/tests"
)

func liveExam(fee int64) exam.NewExam {
	now := time.Now().UnixNano() / int64(time.Millisecond)
	return exam.NewExam{
		Title:    "Model Test 1",
		Duration: 30,
		Questions: []exam.NewQuestion{
			{Question: "2+2?", ContentType: core.ContentText, Options: []string{"3", "4", "5"}, CorrectAnswer: 1},
			{Question: "3*3?", ContentType: core.ContentText, Options: []string{"6", "9"}, CorrectAnswer: 1},
		},
		StartTime: now - int64(time.Minute/time.Millisecond),
		EndTime:   now + int64(time.Hour/time.Millisecond),
		ExamFee:   fee,
		Grade:     core.GradeClass8,
		Type:      exam.TypeExam,
	}
}

func Test_examApi_publish(t *testing.T) {
	env, app := setup(t)

	admin := testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")

	body := marchallObj(t, liveExam(20))
	tests := []httpTest{
		{name: "Auth required", body: body, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", body: body, token: getToken(t, env, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied),
		},
		{name: "Published", body: body, token: getToken(t, env, admin), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/exams"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData exam.Exam
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.ID == "" {
					t.Error("failed! empty exam id")
				}
				if len(respData.Questions) != 2 || respData.Questions[0].ID != "q1" {
					t.Errorf("failed! questions = %+v", respData.Questions)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_examApi_listRedacted(t *testing.T) {
	env, app := setup(t)

	testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	testutil.CreateExam(t, env, liveExam(20))

	req, rec := newAuthRequest(http.MethodGet, "/v1/exams", getToken(t, env, student))
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
	var exams []exam.Exam
	if err := json.Unmarshal(rec.Body.Bytes(), &exams); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(exams) != 1 {
		t.Fatalf("failed! len(exams) = %d; want 1", len(exams))
	}
	// a running exam never exposes its solutions
	for _, q := range exams[0].Questions {
		if q.CorrectAnswer != -1 {
			t.Errorf("failed! correctAnswer = %d; want -1", q.CorrectAnswer)
		}
	}
}

func Test_examApi_listAll(t *testing.T) {
	env, app := setup(t)

	admin := testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	testutil.CreateExam(t, env, liveExam(20))

	// students get neither the route nor the solutions
	req, rec := newAuthRequest(http.MethodGet, "/v1/exams/all", getToken(t, env, student))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/exams/all", getToken(t, env, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
	var exams []exam.Exam
	if err := json.Unmarshal(rec.Body.Bytes(), &exams); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(exams) != 1 {
		t.Fatalf("failed! len(exams) = %d; want 1", len(exams))
	}
	// the admin view keeps the solutions even while the exam runs
	if exams[0].Questions[0].CorrectAnswer != 1 {
		t.Errorf("failed! correctAnswer = %d; want 1", exams[0].Questions[0].CorrectAnswer)
	}
}

func Test_examApi_takeExam(t *testing.T) {
	env, app := setup(t)

	testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	token := getToken(t, env, student)
	exm := testutil.CreateExam(t, env, liveExam(20))

	regBody := marchallObj(t, exam.Registration{Name: student.Name, Roll: "42", StudentClass: "8"})
	regPath := fmt.Sprintf("/v1/exams/%s/register", exm.ID)

	// broke: the fee is not covered
	req, rec := newAuthRequest(http.MethodPost, regPath, token, regBody)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("register (broke) code = %v; want %v", rec.Code, http.StatusBadRequest)
	}

	testutil.SetBalance(t, env, student.UID, 100)

	req, rec = newAuthRequest(http.MethodPost, regPath, token, regBody)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("register code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var sess echoapi.SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if sess.State != exam.StateRegistered || sess.EndsAt == 0 {
		t.Errorf("failed! session = %+v", sess)
	}

	// the fee came off the balance
	me, err := env.UserSvc.GetByUID(req.Context(), student.UID)
	if err != nil {
		t.Fatalf("GetByUID(): %v", err)
	}
	if me.Balance != 80 {
		t.Errorf("failed! balance = %d; want 80", me.Balance)
	}

	// answer both questions, one of them wrong
	answers := []echoapi.AnswerRequest{
		{QuestionID: "q1", OptionIndex: 1},
		{QuestionID: "q2", OptionIndex: 0},
	}
	for _, ans := range answers {
		req, rec = newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/exams/%s/answers", exm.ID), token, marchallObj(t, ans))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("answer code = %v; want %v", rec.Code, http.StatusNoContent)
		}
	}

	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/exams/%s/submit", exm.ID), token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var att exam.Attempt
	if err := json.Unmarshal(rec.Body.Bytes(), &att); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if att.Score != 1 {
		t.Errorf("failed! score = %d; want 1", att.Score)
	}
	if att.Roll != "42" {
		t.Errorf("failed! roll = %v; want 42", att.Roll)
	}

	// submitting again serves the same attempt
	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/exams/%s/submit", exm.ID), token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("re-submit code = %v; want %v", rec.Code, http.StatusOK)
	}

	// the attempt endpoint serves it too
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/exams/%s/attempt", exm.ID), token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("attempt code = %v; want %v", rec.Code, http.StatusOK)
	}

	// registering again conflicts
	req, rec = newAuthRequest(http.MethodPost, regPath, token, regBody)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-register code = %v; want %v", rec.Code, http.StatusConflict)
	}

	// state reflects the attempt
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/exams/%s/state", exm.ID), token)
	app.ServeHTTP(rec, req)
	var state echoapi.StateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if state.State != exam.StateAlreadyAttended {
		t.Errorf("failed! state = %v; want %v", state.State, exam.StateAlreadyAttended)
	}
}

func Test_examApi_awardPrize(t *testing.T) {
	env, app := setup(t)

	admin := testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	testutil.SetBalance(t, env, student.UID, 100)
	exm := testutil.CreateExam(t, env, liveExam(20))

	studentToken := getToken(t, env, student)
	adminToken := getToken(t, env, admin)

	// take the exam
	regBody := marchallObj(t, exam.Registration{Name: student.Name, Roll: "42", StudentClass: "8"})
	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/exams/%s/register", exm.ID), studentToken, regBody)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("register code = %v; body %s", rec.Code, rec.Body.String())
	}
	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/exams/%s/submit", exm.ID), studentToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit code = %v", rec.Code)
	}

	// admin sees the participant
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/exams/%s/participants", exm.ID), adminToken)
	app.ServeHTTP(rec, req)
	var atts []exam.Attempt
	if err := json.Unmarshal(rec.Body.Bytes(), &atts); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(atts) != 1 || atts[0].UID != student.UID {
		t.Fatalf("failed! participants = %+v", atts)
	}

	prizePath := fmt.Sprintf("/v1/exams/%s/participants/%s/prize", exm.ID, student.UID)
	prizeBody := marchallObj(t, echoapi.PrizeRequest{Amount: 500})

	// students cannot award prizes
	req, rec = newAuthRequest(http.MethodPost, prizePath, studentToken, prizeBody)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("prize (student) code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodPost, prizePath, adminToken, prizeBody)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("prize code = %v; want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}

	// the same attempt cannot be awarded twice
	req, rec = newAuthRequest(http.MethodPost, prizePath, adminToken, prizeBody)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double prize code = %v; want %v", rec.Code, http.StatusConflict)
	}

	me, err := env.UserSvc.GetByUID(req.Context(), student.UID)
	if err != nil {
		t.Fatalf("GetByUID(): %v", err)
	}
	if me.Balance != 580 { // 100 - 20 fee + 500 prize
		t.Errorf("failed! balance = %d; want 580", me.Balance)
	}
}

func Test_examApi_practice(t *testing.T) {
	env, app := setup(t)

	testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	token := getToken(t, env, student)

	ne := liveExam(0)
	ne.Type = exam.TypePractice
	ne.Questions[0].Hint = "even"
	practice := testutil.CreateExam(t, env, ne)

	// practice sets live on their own listing
	req, rec := newAuthRequest(http.MethodGet, "/v1/practice", token)
	app.ServeHTTP(rec, req)
	var sets []exam.Exam
	if err := json.Unmarshal(rec.Body.Bytes(), &sets); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("failed! len(sets) = %d; want 1", len(sets))
	}

	// and cannot be registered for
	regBody := marchallObj(t, exam.Registration{Name: student.Name, Roll: "42", StudentClass: "8"})
	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/exams/%s/register", practice.ID), token, regBody)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("register practice code = %v; want %v", rec.Code, http.StatusBadRequest)
	}

	// immediate feedback per question
	checkBody := marchallObj(t, echoapi.AnswerRequest{QuestionID: "q1", OptionIndex: 1})
	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/practice/%s/check", practice.ID), token, checkBody)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("check code = %v; want %v", rec.Code, http.StatusOK)
	}
	var res exam.CheckResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if !res.Correct || res.CorrectAnswer != 1 || res.Hint != "even" {
		t.Errorf("failed! result = %+v", res)
	}
}
