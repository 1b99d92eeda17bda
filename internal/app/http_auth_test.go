package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"imperium/api/internal/auth"
	"imperium/api/internal/store"

	"golang.org/x/crypto/bcrypt"
)

func doRequest(t *testing.T, server *HTTPServer, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func parseEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func dataField(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	payload := parseEnvelope(t, rr)
	if payload["status"] != "success" {
		t.Fatalf("expected success envelope, got %v", payload)
	}
	data, ok := payload["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %v", payload["data"])
	}
	return data
}

func testToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), userID, "Marcus", "jti-test", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestRegisterReturnsTokenPairAndUser(t *testing.T) {
	users := map[string]store.User{}
	fs := &fakeStore{
		createUserFn: func(_ context.Context, user store.User) error {
			users[user.ID] = user
			return nil
		},
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			user, ok := users[userID]
			if !ok {
				return store.User{}, sql.ErrNoRows
			}
			user.Level = 1
			user.Energy = 100
			return user, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/register",
		`{"name":"Marcus","email":"Marcus@Example.com","password":"conquer"}`, "")

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := dataField(t, rr)
	if data["token"] == "" || data["refreshToken"] == "" {
		t.Fatalf("expected token pair, got %v", data)
	}
	user, _ := data["user"].(map[string]any)
	if user["email"] != "marcus@example.com" {
		t.Fatalf("expected lowercased email, got %v", user["email"])
	}
	if user["level"] != float64(1) || user["energy"] != float64(100) {
		t.Fatalf("expected registration defaults, got %v", user)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	rr := doRequest(t, server, http.MethodPost, "/api/auth/register",
		`{"name":"Marcus","email":"m@example.com","password":"abc"}`, "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if payload := parseEnvelope(t, rr); payload["status"] != "fail" {
		t.Fatalf("expected fail envelope on 4xx, got %v", payload)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, _ string) (store.User, error) {
			return store.User{ID: "usr_existing"}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")
	rr := doRequest(t, server, http.MethodPost, "/api/auth/register",
		`{"name":"Marcus","email":"taken@example.com","password":"conquer"}`, "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRegisterStoreFailureDoesNotLeakDetail(t *testing.T) {
	fs := &fakeStore{
		createUserFn: func(_ context.Context, _ store.User) error {
			return errors.New("pq: connection refused host=10.0.0.3")
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")
	rr := doRequest(t, server, http.MethodPost, "/api/auth/register",
		`{"name":"Marcus","email":"m@example.com","password":"conquer"}`, "")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseEnvelope(t, rr)
	if payload["status"] != "error" {
		t.Fatalf("expected error envelope on 5xx, got %v", payload)
	}
	if payload["message"] != "Server error" {
		t.Fatalf("store detail leaked to client: %v", payload["message"])
	}
}

func TestLoginUsesSameMessageForUnknownEmailAndBadPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			if email == "known@example.com" {
				return store.User{ID: "usr_1", Email: email, PasswordHash: string(hash)}, nil
			}
			return store.User{}, sql.ErrNoRows
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	unknown := doRequest(t, server, http.MethodPost, "/api/auth/login",
		`{"email":"nobody@example.com","password":"whatever"}`, "")
	badPassword := doRequest(t, server, http.MethodPost, "/api/auth/login",
		`{"email":"known@example.com","password":"wrong"}`, "")

	if unknown.Code != http.StatusUnauthorized || badPassword.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", unknown.Code, badPassword.Code)
	}
	msgA := parseEnvelope(t, unknown)["message"]
	msgB := parseEnvelope(t, badPassword)["message"]
	if msgA != msgB {
		t.Fatalf("messages must not reveal which credential failed: %v vs %v", msgA, msgB)
	}
}

func TestLoginSucceedsWithValidCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "usr_1", Name: "Marcus", Email: email, PasswordHash: string(hash), Level: 3}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPost, "/api/auth/login",
		`{"email":"known@example.com","password":"correct-horse"}`, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := dataField(t, rr)
	user, _ := data["user"].(map[string]any)
	if user["level"] != float64(3) {
		t.Fatalf("expected level 3, got %v", user["level"])
	}
}

func TestProtectedRouteWithoutBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	rr := doRequest(t, server, http.MethodGet, "/api/users/stats", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if payload := parseEnvelope(t, rr); payload["status"] != "fail" {
		t.Fatalf("expected fail envelope, got %v", payload)
	}
}

func TestProtectedRouteWithExpiredBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	token, err := auth.IssueToken([]byte("test-secret"), "usr_1", "Marcus", "jti-old", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	rr := doRequest(t, server, http.MethodGet, "/api/users/stats", "", token)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthMeReturnsCurrentUser(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, Name: "Marcus", Level: 2, XP: 1500}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodGet, "/api/auth/me", "", testToken(t, "usr_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := dataField(t, rr)
	user, _ := data["user"].(map[string]any)
	if user["id"] != "usr_1" || user["xp"] != float64(1500) {
		t.Fatalf("unexpected user payload %v", user)
	}
}

func TestMentorsArePublic(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	rr := doRequest(t, server, http.MethodGet, "/api/mentors", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	payload := parseEnvelope(t, rr)
	if payload["results"] != float64(3) {
		t.Fatalf("expected 3 mentors, got %v", payload["results"])
	}

	rr = doRequest(t, server, http.MethodGet, "/api/mentors/unknown", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown mentor, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/mentors/aurelius/message", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	data := dataField(t, rr)
	message, _ := data["message"].(map[string]any)
	if message["principle"] == "" || message["directive"] == "" {
		t.Fatalf("expected structured message, got %v", message)
	}
}
