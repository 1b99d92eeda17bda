package app

import (
	"context"
	"net/http"
	"strings"

	"imperium/api/internal/mentors"
	"imperium/api/internal/progression"
	"imperium/api/internal/store"
	"imperium/api/internal/util"
)

var allowedDecreePriorities = map[string]struct{}{
	"low":    {},
	"medium": {},
	"high":   {},
}

var allowedDecreeStatuses = map[string]struct{}{
	"active":    {},
	"pending":   {},
	"completed": {},
}

type CreateDecreeInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Mentor      *string `json:"mentor"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"dueDate"`
}

type UpdateDecreeInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"dueDate"`
}

func (s *Service) CreateDecree(ctx context.Context, userID string, input CreateDecreeInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, domainError(http.StatusBadRequest, "Title and description are required")
	}
	if input.Mentor != nil && !mentors.Exists(*input.Mentor) {
		return nil, domainError(http.StatusBadRequest, "Unknown mentor")
	}
	priority := input.Priority
	if priority == "" {
		priority = "medium"
	}
	if _, ok := allowedDecreePriorities[priority]; !ok {
		return nil, domainError(http.StatusBadRequest, "Invalid priority")
	}

	decree, err := s.store.InsertDecree(ctx, store.Decree{
		ID:          util.NewID("dcr"),
		UserID:      userID,
		Title:       title,
		Description: description,
		Mentor:      input.Mentor,
		Status:      "active",
		Priority:    priority,
		DueDate:     input.DueDate,
	})
	if err != nil {
		return nil, err
	}
	return decreeView(decree), nil
}

func (s *Service) ListDecrees(ctx context.Context, userID, status, mentor string) ([]map[string]any, error) {
	decrees, err := s.store.ListDecrees(ctx, userID, status, mentor)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(decrees))
	for _, decree := range decrees {
		items = append(items, decreeView(decree))
	}
	return items, nil
}

func (s *Service) GetDecree(ctx context.Context, userID, decreeID string) (map[string]any, error) {
	decree, err := s.store.GetDecree(ctx, userID, decreeID)
	if err != nil {
		return nil, err
	}
	return decreeView(decree), nil
}

func (s *Service) UpdateDecree(ctx context.Context, userID, decreeID string, input UpdateDecreeInput) (map[string]any, error) {
	if input.Title == nil && input.Description == nil && input.Status == nil && input.Priority == nil && input.DueDate == nil {
		return nil, domainError(http.StatusBadRequest, "No fields to update")
	}
	if input.Status != nil {
		if _, ok := allowedDecreeStatuses[*input.Status]; !ok {
			return nil, domainError(http.StatusBadRequest, "Invalid status")
		}
	}
	if input.Priority != nil {
		if _, ok := allowedDecreePriorities[*input.Priority]; !ok {
			return nil, domainError(http.StatusBadRequest, "Invalid priority")
		}
	}
	decree, err := s.store.UpdateDecree(ctx, userID, decreeID, store.DecreeUpdate{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
	})
	if err != nil {
		return nil, err
	}
	return decreeView(decree), nil
}

func (s *Service) DeleteDecree(ctx context.Context, userID, decreeID string) error {
	deleted, err := s.store.DeleteDecree(ctx, userID, decreeID)
	if err != nil {
		return err
	}
	if !deleted {
		return domainError(http.StatusNotFound, "Decree not found")
	}
	return nil
}

// CompleteDecree marks the decree completed and awards the fixed XP in one
// transaction. Completing an already-completed decree awards nothing.
func (s *Service) CompleteDecree(ctx context.Context, userID, decreeID string) (map[string]any, error) {
	decree, awarded, xp, level, err := s.store.CompleteDecree(ctx, userID, decreeID)
	if err != nil {
		return nil, err
	}
	leveledUp := false
	if awarded > 0 {
		leveledUp = level > progression.Level(xp-awarded)
	}
	return map[string]any{
		"decree":    decreeView(decree),
		"xpAwarded": awarded,
		"xp":        xp,
		"level":     level,
		"leveledUp": leveledUp,
	}, nil
}

func (s *Service) DecreeStats(ctx context.Context, userID string) (map[string]any, error) {
	stats, err := s.store.DecreeStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total":     stats.Total,
		"completed": stats.Completed,
		"active":    stats.Active,
		"pending":   stats.Pending,
		"byMentor":  stats.ByMentor,
	}, nil
}

func decreeView(d store.Decree) map[string]any {
	return map[string]any{
		"id":          d.ID,
		"title":       d.Title,
		"description": d.Description,
		"mentor":      d.Mentor,
		"status":      d.Status,
		"priority":    d.Priority,
		"dueDate":     d.DueDate,
		"createdAt":   d.CreatedAt,
		"updatedAt":   d.UpdatedAt,
	}
}
