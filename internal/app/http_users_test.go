package app

import (
	"context"
	"net/http"
	"testing"

	"imperium/api/internal/store"
)

func TestUserStatsIncludesCounts(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, Name: "Marcus", Level: 2, XP: 1400, Streak: 5}, nil
		},
		userCountsFn: func(_ context.Context, _ string) (store.UserCounts, error) {
			return store.UserCounts{
				TotalDecrees:     7,
				CompletedDecrees: 4,
				ActiveDecrees:    3,
				JournalEntries:   12,
				CouncilSessions:  2,
			}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodGet, "/api/users/stats", "", testToken(t, "usr_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := dataField(t, rr)
	stats, _ := data["stats"].(map[string]any)
	if stats["totalDecrees"] != float64(7) || stats["journalEntries"] != float64(12) {
		t.Fatalf("unexpected stats %v", stats)
	}
	if stats["daysActive"].(float64) < 1 {
		t.Fatalf("daysActive must be at least 1, got %v", stats["daysActive"])
	}
}

func TestUpdateProfileRejectsBlankName(t *testing.T) {
	called := false
	fs := &fakeStore{
		updateUserNameFn: func(_ context.Context, _, _ string) (store.User, error) {
			called = true
			return store.User{}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPatch, "/api/users/profile", `{"name":"   "}`, testToken(t, "usr_1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if called {
		t.Fatalf("store must not be touched for blank name")
	}
}

func TestUpdateSettingsRequiresAtLeastOneField(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	rr := doRequest(t, server, http.MethodPatch, "/api/users/settings", `{}`, testToken(t, "usr_1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSelectMentorValidatesCatalog(t *testing.T) {
	var gotMentor string
	var gotActive bool
	fs := &fakeStore{
		updateUserMentorFn: func(_ context.Context, userID, mentorID string, setAsActive bool) (store.User, error) {
			gotMentor = mentorID
			gotActive = setAsActive
			return store.User{ID: userID, SelectedMentorID: &mentorID}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPatch, "/api/users/mentor",
		`{"mentorId":"sun-tzu"}`, testToken(t, "usr_1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mentor, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodPatch, "/api/users/mentor",
		`{"mentorId":"napoleon","setAsActive":true}`, testToken(t, "usr_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if gotMentor != "napoleon" || !gotActive {
		t.Fatalf("expected napoleon with setAsActive, got %q %v", gotMentor, gotActive)
	}
}

func TestAddXPEndpointRejectsZeroAmount(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	rr := doRequest(t, server, http.MethodPost, "/api/users/xp", `{"amount":0}`, testToken(t, "usr_1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdjustEnergyPassesNegativeAmounts(t *testing.T) {
	var gotAmount int
	fs := &fakeStore{
		adjustEnergyFn: func(_ context.Context, _ string, amount int) (int, error) {
			gotAmount = amount
			return 80, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPatch, "/api/users/energy", `{"amount":-20}`, testToken(t, "usr_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if gotAmount != -20 {
		t.Fatalf("expected amount -20, got %d", gotAmount)
	}
	data := dataField(t, rr)
	if data["energy"] != float64(80) {
		t.Fatalf("expected energy 80, got %v", data["energy"])
	}
}

func TestAdjustEnergyRequiresAmount(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	rr := doRequest(t, server, http.MethodPatch, "/api/users/energy", `{}`, testToken(t, "usr_1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestIncrementStreakReturnsNewValue(t *testing.T) {
	fs := &fakeStore{
		incrementStreakFn: func(_ context.Context, _ string) (int, error) {
			return 6, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPost, "/api/users/streak", "", testToken(t, "usr_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := dataField(t, rr)
	if data["streak"] != float64(6) {
		t.Fatalf("expected streak 6, got %v", data["streak"])
	}
}

func TestResetProgressCallsStore(t *testing.T) {
	var resetUser string
	fs := &fakeStore{
		resetProgressFn: func(_ context.Context, userID string) error {
			resetUser = userID
			return nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodDelete, "/api/users/reset", "", testToken(t, "usr_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if resetUser != "usr_1" {
		t.Fatalf("expected reset for usr_1, got %q", resetUser)
	}
}
