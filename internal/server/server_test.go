package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"librarium/internal/app"
	"librarium/pkg/auth"
	"librarium/pkg/domain"
	"librarium/pkg/queue"
	"librarium/pkg/store"
)

type nopNotifier struct{}

func (nopNotifier) Enqueue(_ context.Context, job queue.EmailJob) (queue.JobStatus, error) {
	return queue.JobStatus{ID: "job", Job: job, Status: queue.StatusQueued}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	appCore, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Notifier: nopNotifier{},
		Tokens:   tokens,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{App: appCore})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, appCore
}

func doJSON(t *testing.T, method, url, token string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func detail(t *testing.T, raw []byte) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode error body %q: %v", raw, err)
	}
	return body["detail"]
}

// signUp registers and activates an account through the HTTP API and
// returns its id and an access token.
func signUp(t *testing.T, ts *httptest.Server, appCore *app.App, name, email string, userType int) (string, string) {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/register/", "", map[string]any{
		"name":      name,
		"email":     email,
		"password":  "Passw0rd123",
		"user_type": userType,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, resp.StatusCode, raw)
	}
	var created domain.User
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("decode user: %v", err)
	}

	activationToken, err := appCore.ActivationToken(created.ID)
	if err != nil {
		t.Fatalf("activation token: %v", err)
	}
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/activate/"+created.ID+"/?token="+activationToken, "", nil)
	if resp.StatusCode != http.StatusOK || string(raw) != "User activated successfully." {
		t.Fatalf("activate: status %d body %q", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/login/", "", map[string]string{
		"email":    email,
		"password": "Passw0rd123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d body %s", resp.StatusCode, raw)
	}
	var login struct {
		Token string `json:"token"`
		ID    string `json:"id"`
	}
	if err := json.Unmarshal(raw, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" || login.ID != created.ID {
		t.Fatalf("unexpected login payload: %s", raw)
	}
	return created.ID, login.Token
}

func TestBorrowReturnFlow(t *testing.T) {
	ts, appCore := newTestServer(t)
	_, staffToken := signUp(t, ts, appCore, "Lib", "lib@example.com", 0)
	visitorID, visitorToken := signUp(t, ts, appCore, "Vis", "vis@example.com", 1)

	// staff creates a book
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/books/", staffToken, map[string]any{
		"title":        "The Trial",
		"author":       "Franz Kafka",
		"total_copies": 1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create book: status %d body %s", resp.StatusCode, raw)
	}
	var book domain.Book
	if err := json.Unmarshal(raw, &book); err != nil {
		t.Fatalf("decode book: %v", err)
	}

	// visitor borrows it
	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/borrow/"+book.ID+"/", visitorToken, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("borrow: status %d body %s", resp.StatusCode, raw)
	}
	var rec domain.BorrowRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.BookID != book.ID || rec.ReturnedAt != nil {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// inventory went down
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/book/"+book.ID+"/", visitorToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get book: status %d", resp.StatusCode)
	}
	var got domain.Book
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode book: %v", err)
	}
	if got.AvailableCopies != 0 {
		t.Fatalf("expected 0 available, got %d", got.AvailableCopies)
	}

	// second copy is not there
	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/borrow/"+book.ID+"/", visitorToken, nil)
	if resp.StatusCode != http.StatusBadRequest || detail(t, raw) != "You have already borrowed this book." {
		t.Fatalf("double borrow: status %d body %s", resp.StatusCode, raw)
	}

	// loans show up for the visitor and for staff
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/my-borrowed-books/", visitorToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("my borrowed: status %d body %s", resp.StatusCode, raw)
	}
	var loans []domain.BorrowRecord
	if err := json.Unmarshal(raw, &loans); err != nil || len(loans) != 1 {
		t.Fatalf("my borrowed payload: %s err=%v", raw, err)
	}
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/user-borrowed-books/"+visitorID+"/", staffToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user borrowed: status %d body %s", resp.StatusCode, raw)
	}

	// staff cannot delete the book while it is out
	resp, raw = doJSON(t, http.MethodDelete, ts.URL+"/book/"+book.ID+"/", staffToken, nil)
	if resp.StatusCode != http.StatusBadRequest ||
		detail(t, raw) != "Cannot delete the book because some copies are currently borrowed." {
		t.Fatalf("delete with loan: status %d body %s", resp.StatusCode, raw)
	}

	// return it
	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/return/"+book.ID+"/", visitorToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("return: status %d body %s", resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, &rec); err != nil || rec.ReturnedAt == nil {
		t.Fatalf("return payload: %s err=%v", raw, err)
	}

	// now the delete goes through
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/book/"+book.ID+"/", staffToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete after return: status %d", resp.StatusCode)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/books/", "", nil)
	if resp.StatusCode != http.StatusUnauthorized ||
		detail(t, raw) != "Authentication credentials were not provided." {
		t.Fatalf("missing token: status %d body %s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/books/", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized || detail(t, raw) != "Invalid token" {
		t.Fatalf("bad token: status %d body %s", resp.StatusCode, raw)
	}
}

func TestExpiredTokenMessage(t *testing.T) {
	ts, _ := newTestServer(t)

	// Hand-roll a token signed with the server's secret but already
	// past its expiry.
	now := time.Now().UTC()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"scope": "access",
		"sub":   "user-1",
		"iat":   now.Add(-2 * time.Minute).Unix(),
		"exp":   now.Add(-time.Minute).Unix(),
	})
	expired, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/books/", expired, nil)
	if resp.StatusCode != http.StatusUnauthorized || detail(t, raw) != "Token has expired" {
		t.Fatalf("expired token: status %d body %s", resp.StatusCode, raw)
	}
}

func TestPermissionAndErrorMapping(t *testing.T) {
	ts, appCore := newTestServer(t)
	staffID, staffToken := signUp(t, ts, appCore, "Lib", "lib@example.com", 0)
	_, visitorToken := signUp(t, ts, appCore, "Vis", "vis@example.com", 1)

	// visitor cannot create books
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/books/", visitorToken, map[string]any{
		"title": "T", "author": "A", "total_copies": 1,
	})
	if resp.StatusCode != http.StatusForbidden ||
		detail(t, raw) != "You do not have permission to add books." {
		t.Fatalf("visitor create: status %d body %s", resp.StatusCode, raw)
	}

	// staff cannot borrow
	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/borrow/some-id/", staffToken, nil)
	if resp.StatusCode != http.StatusForbidden ||
		detail(t, raw) != "You do not have permission to borrow books." {
		t.Fatalf("staff borrow: status %d body %s", resp.StatusCode, raw)
	}

	// unknown book is a 404
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/book/missing/", visitorToken, nil)
	if resp.StatusCode != http.StatusNotFound || detail(t, raw) != "Book not found" {
		t.Fatalf("missing book: status %d body %s", resp.StatusCode, raw)
	}

	// staff loans view rejects staff targets
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/user-borrowed-books/"+staffID+"/", staffToken, nil)
	if resp.StatusCode != http.StatusForbidden ||
		detail(t, raw) != "This user is a library staff member." {
		t.Fatalf("staff target: status %d body %s", resp.StatusCode, raw)
	}

	// validation errors are 400s
	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/register/", "", map[string]any{
		"name": "X", "email": "bad email", "password": "Passw0rd123", "user_type": 1,
	})
	if resp.StatusCode != http.StatusBadRequest || detail(t, raw) != "Enter a valid email address." {
		t.Fatalf("bad email: status %d body %s", resp.StatusCode, raw)
	}

	// wrong credentials are a 401
	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/login/", "", map[string]string{
		"email": "lib@example.com", "password": "Nope12345",
	})
	if resp.StatusCode != http.StatusUnauthorized ||
		detail(t, raw) != "User not found or password is incorrect" {
		t.Fatalf("bad login: status %d body %s", resp.StatusCode, raw)
	}
}

func TestActivateEdgeCases(t *testing.T) {
	ts, appCore := newTestServer(t)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/register/", "", map[string]any{
		"name": "Ann", "email": "ann@example.com", "password": "Passw0rd123", "user_type": 1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d body %s", resp.StatusCode, raw)
	}
	var created domain.User
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("decode user: %v", err)
	}

	// bad token
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/activate/"+created.ID+"/?token=bogus", "", nil)
	if resp.StatusCode != http.StatusBadRequest ||
		detail(t, raw) != "Invalid or expired activation link." {
		t.Fatalf("bad token: status %d body %s", resp.StatusCode, raw)
	}

	// unknown user
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/activate/missing/?token=bogus", "", nil)
	if resp.StatusCode != http.StatusNotFound || detail(t, raw) != "User not found." {
		t.Fatalf("unknown user: status %d body %s", resp.StatusCode, raw)
	}

	// idempotent activation
	token, err := appCore.ActivationToken(created.ID)
	if err != nil {
		t.Fatalf("activation token: %v", err)
	}
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/activate/"+created.ID+"/?token="+token, "", nil)
	if resp.StatusCode != http.StatusOK || string(raw) != "User activated successfully." {
		t.Fatalf("first activate: status %d body %q", resp.StatusCode, raw)
	}
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/activate/"+created.ID+"/?token="+token, "", nil)
	if resp.StatusCode != http.StatusOK || string(raw) != "User is active." {
		t.Fatalf("repeat activate: status %d body %q", resp.StatusCode, raw)
	}
}

func TestRegisterRequiresUserType(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/register/", "", map[string]any{
		"name": "Ann", "email": "ann@example.com", "password": "Passw0rd123",
	})
	if resp.StatusCode != http.StatusBadRequest || detail(t, raw) != "Invalid user type." {
		t.Fatalf("missing user_type: status %d body %s", resp.StatusCode, raw)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, appCore := newTestServer(t)
	_, token := signUp(t, ts, appCore, "Vis", "vis@example.com", 1)

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/borrow/some-id/", token, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/register/", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestLogoutAndDeleteSelf(t *testing.T) {
	ts, appCore := newTestServer(t)
	_, staffToken := signUp(t, ts, appCore, "Lib", "lib@example.com", 0)
	_, visitorToken := signUp(t, ts, appCore, "Vis", "vis@example.com", 1)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/logout/", visitorToken, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), "success") {
		t.Fatalf("logout: status %d body %s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodDelete, ts.URL+"/delete/", visitorToken, nil)
	if resp.StatusCode != http.StatusForbidden ||
		detail(t, raw) != "Only library users can delete themselves." {
		t.Fatalf("visitor delete self: status %d body %s", resp.StatusCode, raw)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/delete/", staffToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("staff delete self: status %d", resp.StatusCode)
	}
	// the deleted account's token no longer authenticates
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/books/", staffToken, nil)
	if resp.StatusCode != http.StatusUnauthorized || detail(t, raw) != "User not found" {
		t.Fatalf("deleted account token: status %d body %s", resp.StatusCode, raw)
	}
}
