package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/core/chat"
	"github.com/eduprohq/edupro/core/content"
	testutil "github.com/eduprohq/edupro/tests"
)

func Test_contentApi_posts(t *testing.T) {
	env, app := setup(t)

	admin := testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	adminToken := getToken(t, env, admin)
	studentToken := getToken(t, env, student)

	body := marchallObj(t, content.NewPost{
		Title: "Algebra shortcuts", Content: "A few identities worth memorizing.",
		Category: "Math", Grade: core.GradeClass8,
	})

	// students cannot post
	req, rec := newAuthRequest(http.MethodPost, "/v1/posts", studentToken, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("create (student) code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/posts", adminToken, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code = %v; body %s", rec.Code, rec.Body.String())
	}
	var post content.Post
	if err := json.Unmarshal(rec.Body.Bytes(), &post); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if post.ID == "" || post.Timestamp == 0 {
		t.Errorf("failed! post = %+v", post)
	}

	// anyone signed in reads the feed
	req, rec = newAuthRequest(http.MethodGet, "/v1/posts", studentToken)
	app.ServeHTTP(rec, req)
	var posts []content.Post
	if err := json.Unmarshal(rec.Body.Bytes(), &posts); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "Algebra shortcuts" {
		t.Errorf("failed! posts = %+v", posts)
	}

	// grade filter
	req, rec = newAuthRequest(http.MethodGet, "/v1/posts?grade=HSC", studentToken)
	app.ServeHTTP(rec, req)
	_ = json.Unmarshal(rec.Body.Bytes(), &posts)
	if len(posts) != 0 {
		t.Errorf("failed! filtered posts = %+v", posts)
	}

	// delete is admin-only
	req, rec = newAuthRequest(http.MethodDelete, "/v1/posts/"+post.ID, studentToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete (student) code = %v; want %v", rec.Code, http.StatusForbidden)
	}
	req, rec = newAuthRequest(http.MethodDelete, "/v1/posts/"+post.ID, adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete code = %v; want %v", rec.Code, http.StatusNoContent)
	}
}

func Test_contentApi_resources(t *testing.T) {
	env, app := setup(t)

	admin := testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	adminToken := getToken(t, env, admin)

	for _, nr := range []content.NewResource{
		{Title: "Physics formulas", Type: content.ResourcePDF, Grade: core.GradeHSC, URL: "https://files.test.local/physics.pdf"},
		{Title: "Chemistry lecture", Type: content.ResourceVideo, Grade: core.GradeHSC, URL: "https://youtu.be/abc123"},
	} {
		req, rec := newAuthRequest(http.MethodPost, "/v1/resources", adminToken, marchallObj(t, nr))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create code = %v; body %s", rec.Code, rec.Body.String())
		}
	}

	// rejects anything but pdf|video
	bad := marchallObj(t, content.NewResource{Title: "x", Type: "epub", Grade: core.GradeHSC, URL: "https://files.test.local/x"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/resources", adminToken, bad)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("create (bad type) code = %v; want %v", rec.Code, http.StatusBadRequest)
	}

	// type filter splits the library
	req, rec = newAuthRequest(http.MethodGet, "/v1/resources?type=pdf", adminToken)
	app.ServeHTTP(rec, req)
	var res []content.Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(res) != 1 || res[0].Type != content.ResourcePDF {
		t.Errorf("failed! resources = %+v", res)
	}
}

func Test_contentApi_notices(t *testing.T) {
	env, app := setup(t)

	admin := testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	adminToken := getToken(t, env, admin)

	req, rec := newAuthRequest(http.MethodPost, "/v1/notices", adminToken,
		marchallObj(t, content.NewNotice{Text: "Results publish Friday."}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code = %v; body %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/notices", adminToken)
	app.ServeHTTP(rec, req)
	var notices []content.Notice
	if err := json.Unmarshal(rec.Body.Bytes(), &notices); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(notices) != 1 || notices[0].Text != "Results publish Friday." {
		t.Errorf("failed! notices = %+v", notices)
	}
}

func Test_contentApi_config(t *testing.T) {
	env, app := setup(t)

	admin := testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	adminToken := getToken(t, env, admin)
	studentToken := getToken(t, env, student)

	// defaults to the zero config
	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "zero config", token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, content.AppConfig{})},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/config"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	conf := content.AppConfig{MarqueeNotice: "Admission exam Sunday", BkashNumber: "01711111111", NagadNumber: "01822222222"}

	// students cannot write it
	req, rec := newAuthRequest(http.MethodPut, "/v1/config", studentToken, marchallObj(t, conf))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("update (student) code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodPut, "/v1/config", adminToken, marchallObj(t, conf))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update code = %v; body %s", rec.Code, rec.Body.String())
	}

	// everyone reads the new values
	req, rec = newAuthRequest(http.MethodGet, "/v1/config", studentToken)
	app.ServeHTTP(rec, req)
	ok, err := jsonBytesEqual(rec.Body.Bytes(), marchallObj(t, conf))
	if err != nil || !ok {
		t.Errorf("failed! config = %v", rec.Body.String())
	}
}

func Test_chatApi(t *testing.T) {
	env, app := setup(t)

	testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	token := getToken(t, env, student)

	req, rec := newAuthRequest(http.MethodPost, "/v1/chat", token,
		marchallObj(t, chat.NewMessage{Message: "anyone solved q3?"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send code = %v; body %s", rec.Code, rec.Body.String())
	}
	var msg chat.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if msg.ID == "" || msg.UID != student.UID || msg.UserName != student.Name {
		t.Errorf("failed! message = %+v", msg)
	}

	// an empty message is refused
	req, rec = newAuthRequest(http.MethodPost, "/v1/chat", token, marchallObj(t, chat.NewMessage{}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("send (empty) code = %v; want %v", rec.Code, http.StatusBadRequest)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/chat", token)
	app.ServeHTTP(rec, req)
	var msgs []chat.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(msgs) != 1 || msgs[0].Message != "anyone solved q3?" {
		t.Errorf("failed! history = %+v", msgs)
	}
}
