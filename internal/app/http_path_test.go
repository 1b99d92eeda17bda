package app

import (
	"context"
	"net/http"
	"testing"

	"imperium/api/internal/progression"
	"imperium/api/internal/store"
)

func templateAsStored(userID string) []store.PathNode {
	template := progression.Template()
	nodes := make([]store.PathNode, 0, len(template))
	for i, n := range template {
		nodes = append(nodes, store.PathNode{
			ID:          "pn_" + n.NodeID,
			UserID:      userID,
			NodeID:      n.NodeID,
			Title:       n.Title,
			Realm:       n.Realm,
			Status:      n.Status,
			Description: n.Description,
			Quests:      n.Quests,
			XPReward:    n.XPReward,
			Rewarded:    n.Rewarded,
			SortOrder:   i,
		})
	}
	return nodes
}

func TestGetPathSeedsTemplateOnFirstAccess(t *testing.T) {
	seeded := false
	fs := &fakeStore{
		countPathNodesFn: func(_ context.Context, _ string) (int, error) {
			if seeded {
				return 5, nil
			}
			return 0, nil
		},
		seedPathFn: func(_ context.Context, _ string, nodes []progression.Node) error {
			if len(nodes) != 5 {
				t.Fatalf("expected 5 template nodes, got %d", len(nodes))
			}
			seeded = true
			return nil
		},
		listPathNodesFn: func(_ context.Context, userID string) ([]store.PathNode, error) {
			return templateAsStored(userID), nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodGet, "/api/path", "", testToken(t, "usr_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if !seeded {
		t.Fatalf("expected first access to seed the path")
	}
	data := dataField(t, rr)
	if data["totalNodes"] != float64(5) || data["completedNodes"] != float64(1) {
		t.Fatalf("unexpected totals %v", data)
	}
	if data["progress"] != float64(20) {
		t.Fatalf("expected progress 20, got %v", data["progress"])
	}
	if data["currentRealm"] != "Foundation" {
		t.Fatalf("expected active realm Foundation, got %v", data["currentRealm"])
	}
	nodes, _ := data["nodes"].([]any)
	first, _ := nodes[0].(map[string]any)
	if first["id"] != "awakening" || first["status"] != "completed" {
		t.Fatalf("unexpected first node %v", first)
	}
}

func TestGetPathSkipsSeedingWhenPresent(t *testing.T) {
	fs := &fakeStore{
		countPathNodesFn: func(_ context.Context, _ string) (int, error) {
			return 5, nil
		},
		seedPathFn: func(_ context.Context, _ string, _ []progression.Node) error {
			t.Fatalf("must not reseed an existing path")
			return nil
		},
		listPathNodesFn: func(_ context.Context, userID string) ([]store.PathNode, error) {
			return templateAsStored(userID), nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodGet, "/api/path", "", testToken(t, "usr_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestGetPathNodeNotFound(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	rr := doRequest(t, server, http.MethodGet, "/api/path/valhalla", "", testToken(t, "usr_1"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestUpdateQuestRequiresCompletedFlag(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")
	rr := doRequest(t, server, http.MethodPatch, "/api/path/discipline/quest/q3", `{}`, testToken(t, "usr_1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUpdateQuestCompletionUnlocksNextNode(t *testing.T) {
	fs := &fakeStore{
		updateQuestFn: func(_ context.Context, _, nodeID, questID string, completed bool) (store.QuestResult, error) {
			if nodeID != "discipline" || questID != "q4" || !completed {
				t.Fatalf("unexpected quest update %s/%s/%v", nodeID, questID, completed)
			}
			return store.QuestResult{
				Node: store.PathNode{
					NodeID:   "discipline",
					Status:   progression.StatusCompleted,
					Quests:   []progression.Quest{{ID: "q3", Completed: true}, {ID: "q4", Completed: true}},
					XPReward: 200,
					Rewarded: true,
				},
				NodeCompleted:  true,
				XPAwarded:      200,
				UnlockedNodeID: "influence",
				XP:             1100,
				Level:          2,
				LeveledUp:      true,
			}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPatch, "/api/path/discipline/quest/q4",
		`{"completed":true}`, testToken(t, "usr_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := dataField(t, rr)
	if data["nodeCompleted"] != true || data["xpAwarded"] != float64(200) {
		t.Fatalf("unexpected transition %v", data)
	}
	if data["unlockedNodeId"] != "influence" {
		t.Fatalf("expected influence unlocked, got %v", data["unlockedNodeId"])
	}
	if data["leveledUp"] != true || data["level"] != float64(2) {
		t.Fatalf("expected level up, got %v", data)
	}
}

func TestUpdateQuestUnknownQuestReturns404(t *testing.T) {
	fs := &fakeStore{
		updateQuestFn: func(_ context.Context, _, _, _ string, _ bool) (store.QuestResult, error) {
			return store.QuestResult{}, progression.ErrQuestNotFound
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPatch, "/api/path/discipline/quest/q99",
		`{"completed":true}`, testToken(t, "usr_1"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestResetPathReseedsTemplate(t *testing.T) {
	var reseeded bool
	fs := &fakeStore{
		resetPathFn: func(_ context.Context, _ string, nodes []progression.Node) error {
			if len(nodes) != 5 {
				t.Fatalf("expected 5 template nodes, got %d", len(nodes))
			}
			reseeded = true
			return nil
		},
		listPathNodesFn: func(_ context.Context, userID string) ([]store.PathNode, error) {
			return templateAsStored(userID), nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPost, "/api/path/reset", "", testToken(t, "usr_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if !reseeded {
		t.Fatalf("expected reset to reseed the template")
	}
}
