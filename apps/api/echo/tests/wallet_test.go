package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/eduprohq/edupro/core/wallet"
	testutil "github.com/eduprohq/edupro/tests"
)

func Test_walletApi_deposit(t *testing.T) {
	env, app := setup(t)

	testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	token := getToken(t, env, student)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "below minimum", token: token, wantCode: http.StatusBadRequest,
			body: marchallObj(t, wallet.DepositRequest{Amount: 5, Method: wallet.MethodBkash}),
		},
		{
			name: "unknown method", token: token, wantCode: http.StatusBadRequest,
			body: marchallObj(t, wallet.DepositRequest{Amount: 100, Method: "PayPal"}),
		},
		{
			name: "filed", token: token, wantCode: http.StatusCreated,
			body: marchallObj(t, wallet.DepositRequest{Amount: 100, Method: wallet.MethodBkash}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/wallet/deposits"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var tx wallet.Transaction
				if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if tx.ID == "" || tx.Status != wallet.StatusPending || tx.UID != student.UID {
					t.Errorf("failed! tx = %+v", tx)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_walletApi_settle(t *testing.T) {
	env, app := setup(t)

	admin := testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	student := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	studentToken := getToken(t, env, student)
	adminToken := getToken(t, env, admin)

	// file two deposits
	var txs [2]wallet.Transaction
	for i := range txs {
		body := marchallObj(t, wallet.DepositRequest{Amount: 100, Method: wallet.MethodNagad})
		req, rec := newAuthRequest(http.MethodPost, "/v1/wallet/deposits", studentToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("deposit code = %v; body %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &txs[i]); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
	}

	// students cannot settle
	req, rec := newAuthRequest(http.MethodPost, "/v1/wallet/transactions/"+txs[0].ID+"/approve", studentToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("settle (student) code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	// approve the first
	req, rec = newAuthRequest(http.MethodPost, "/v1/wallet/transactions/"+txs[0].ID+"/approve", adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve code = %v; body %s", rec.Code, rec.Body.String())
	}

	// approving it again conflicts
	req, rec = newAuthRequest(http.MethodPost, "/v1/wallet/transactions/"+txs[0].ID+"/approve", adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-approve code = %v; want %v", rec.Code, http.StatusConflict)
	}

	// reject the second
	req, rec = newAuthRequest(http.MethodPost, "/v1/wallet/transactions/"+txs[1].ID+"/reject", adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject code = %v; body %s", rec.Code, rec.Body.String())
	}

	// unknown transaction
	req, rec = newAuthRequest(http.MethodPost, "/v1/wallet/transactions/nope/approve", adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("approve (unknown) code = %v; want %v", rec.Code, http.StatusNotFound)
	}

	// only the approved deposit hit the balance
	me, err := env.UserSvc.GetByUID(req.Context(), student.UID)
	if err != nil {
		t.Fatalf("GetByUID(): %v", err)
	}
	if me.Balance != 100 {
		t.Errorf("failed! balance = %d; want 100", me.Balance)
	}
}

func Test_walletApi_history(t *testing.T) {
	env, app := setup(t)

	admin := testutil.CreateAdmin(t, env, "Admin", "admin@test.local")
	asha := testutil.CreateUser(t, env, "Asha Rahman", "asha@test.local")
	badal := testutil.CreateUser(t, env, "Badal Khan", "badal@test.local")

	for _, usr := range []struct {
		token  string
		amount int64
	}{
		{getToken(t, env, asha), 100},
		{getToken(t, env, badal), 200},
	} {
		body := marchallObj(t, wallet.DepositRequest{Amount: usr.amount, Method: wallet.MethodBkash})
		req, rec := newAuthRequest(http.MethodPost, "/v1/wallet/deposits", usr.token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("deposit code = %v", rec.Code)
		}
	}

	// own history only
	req, rec := newAuthRequest(http.MethodGet, "/v1/wallet/transactions", getToken(t, env, asha))
	app.ServeHTTP(rec, req)
	var own []wallet.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &own); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(own) != 1 || own[0].Amount != 100 {
		t.Errorf("failed! history = %+v", own)
	}

	// the admin ledger view sees everything
	req, rec = newAuthRequest(http.MethodGet, "/v1/wallet/transactions/all", getToken(t, env, admin))
	app.ServeHTTP(rec, req)
	var all []wallet.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(all) != 2 {
		t.Errorf("failed! len(all) = %d; want 2", len(all))
	}

	// but not students
	req, rec = newAuthRequest(http.MethodGet, "/v1/wallet/transactions/all", getToken(t, env, badal))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("all (student) code = %v; want %v", rec.Code, http.StatusForbidden)
	}
}
