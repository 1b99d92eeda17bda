package app

import (
	"context"
	"errors"
	"net/http"

	"imperium/api/internal/progression"
	"imperium/api/internal/store"
)

// GetPath returns the caller's path, seeding the fixed template on first
// access. Seeding uses ON CONFLICT DO NOTHING so racing first fetches
// converge on one path.
func (s *Service) GetPath(ctx context.Context, userID string) (map[string]any, error) {
	count, err := s.store.CountPathNodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		if err := s.store.SeedPath(ctx, userID, progression.Template()); err != nil {
			return nil, err
		}
	}
	nodes, err := s.store.ListPathNodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pathView(nodes), nil
}

func (s *Service) GetPathNode(ctx context.Context, userID, nodeID string) (map[string]any, error) {
	node, err := s.store.GetPathNode(ctx, userID, nodeID)
	if err != nil {
		return nil, err
	}
	return pathNodeView(node), nil
}

// UpdateQuest marks a quest complete or incomplete. When the change
// completes the active node the whole transition (status, reward,
// unlock, XP) is applied atomically by the store.
func (s *Service) UpdateQuest(ctx context.Context, userID, nodeID, questID string, completed bool) (map[string]any, error) {
	result, err := s.store.UpdateQuest(ctx, userID, nodeID, questID, completed)
	if err != nil {
		if errors.Is(err, progression.ErrNodeNotFound) {
			return nil, domainError(http.StatusNotFound, "Path node not found")
		}
		if errors.Is(err, progression.ErrQuestNotFound) {
			return nil, domainError(http.StatusNotFound, "Quest not found")
		}
		return nil, err
	}
	view := map[string]any{
		"node":          pathNodeView(result.Node),
		"nodeCompleted": result.NodeCompleted,
		"xpAwarded":     result.XPAwarded,
		"leveledUp":     result.LeveledUp,
	}
	if result.UnlockedNodeID != "" {
		view["unlockedNodeId"] = result.UnlockedNodeID
	}
	if result.NodeCompleted {
		view["xp"] = result.XP
		view["level"] = result.Level
	}
	return view, nil
}

func (s *Service) ResetPath(ctx context.Context, userID string) (map[string]any, error) {
	if err := s.store.ResetPath(ctx, userID, progression.Template()); err != nil {
		return nil, err
	}
	nodes, err := s.store.ListPathNodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pathView(nodes), nil
}

func pathView(nodes []store.PathNode) map[string]any {
	items := make([]map[string]any, 0, len(nodes))
	completed := 0
	currentRealm := ""
	for _, node := range nodes {
		if node.Status == progression.StatusCompleted {
			completed++
		}
		if node.Status == progression.StatusActive && currentRealm == "" {
			currentRealm = node.Realm
		}
		items = append(items, pathNodeView(node))
	}
	progress := 0
	if len(nodes) > 0 {
		progress = completed * 100 / len(nodes)
	}
	if currentRealm == "" && len(nodes) > 0 {
		// All nodes completed: report the last realm.
		currentRealm = nodes[len(nodes)-1].Realm
	}
	return map[string]any{
		"nodes":          items,
		"totalNodes":     len(nodes),
		"completedNodes": completed,
		"progress":       progress,
		"currentRealm":   currentRealm,
	}
}

func pathNodeView(n store.PathNode) map[string]any {
	quests := n.Quests
	if quests == nil {
		quests = []progression.Quest{}
	}
	return map[string]any{
		"id":          n.NodeID,
		"title":       n.Title,
		"realm":       n.Realm,
		"status":      n.Status,
		"description": n.Description,
		"quests":      quests,
		"xpReward":    n.XPReward,
	}
}
