package app

import (
	"context"
	"net/http"
	"strings"

	"imperium/api/internal/mentors"
	"imperium/api/internal/search"
	"imperium/api/internal/store"
	"imperium/api/internal/util"
)

type CreateJournalInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Mentor  *string  `json:"mentor"`
	Tags    []string `json:"tags"`
}

type UpdateJournalInput struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

type JournalQuery struct {
	Mentor       string
	FavoriteOnly bool
	Search       string
}

func (s *Service) CreateJournalEntry(ctx context.Context, userID string, input CreateJournalInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return nil, domainError(http.StatusBadRequest, "Title and content are required")
	}
	if input.Mentor != nil && *input.Mentor != "council" && !mentors.Exists(*input.Mentor) {
		return nil, domainError(http.StatusBadRequest, "Unknown mentor")
	}
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	entry, err := s.store.InsertJournalEntry(ctx, store.JournalEntry{
		ID:      util.NewID("jrn"),
		UserID:  userID,
		Title:   title,
		Content: content,
		Mentor:  input.Mentor,
		Tags:    tags,
	})
	if err != nil {
		return nil, err
	}
	s.indexJournalEntry(entry)
	return journalView(entry), nil
}

func (s *Service) ListJournalEntries(ctx context.Context, userID string, query JournalQuery) ([]map[string]any, error) {
	filter := store.JournalFilter{Mentor: query.Mentor, FavoriteOnly: query.FavoriteOnly}

	var entries []store.JournalEntry
	var err error
	if strings.TrimSpace(query.Search) != "" {
		entries, err = s.searchJournalEntries(ctx, userID, query.Search, filter)
	} else {
		entries, err = s.store.ListJournalEntries(ctx, userID, filter)
	}
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, journalView(entry))
	}
	return items, nil
}

func (s *Service) searchJournalEntries(ctx context.Context, userID, text string, filter store.JournalFilter) ([]store.JournalEntry, error) {
	if s.search != nil {
		ids, ok := s.search.Search(search.Query{
			UserID:       userID,
			Text:         text,
			Mentor:       filter.Mentor,
			FavoriteOnly: filter.FavoriteOnly,
		})
		if ok {
			return s.store.ListJournalEntriesByIDs(ctx, userID, ids)
		}
	}
	return s.store.SearchJournalEntries(ctx, userID, text, filter)
}

func (s *Service) GetJournalEntry(ctx context.Context, userID, entryID string) (map[string]any, error) {
	entry, err := s.store.GetJournalEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	return journalView(entry), nil
}

func (s *Service) UpdateJournalEntry(ctx context.Context, userID, entryID string, input UpdateJournalInput) (map[string]any, error) {
	if input.Title == nil && input.Content == nil && input.Tags == nil {
		return nil, domainError(http.StatusBadRequest, "No fields to update")
	}
	entry, err := s.store.UpdateJournalEntry(ctx, userID, entryID, store.JournalUpdate{
		Title:   input.Title,
		Content: input.Content,
		Tags:    input.Tags,
	})
	if err != nil {
		return nil, err
	}
	s.indexJournalEntry(entry)
	return journalView(entry), nil
}

func (s *Service) DeleteJournalEntry(ctx context.Context, userID, entryID string) error {
	deleted, err := s.store.DeleteJournalEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}
	if !deleted {
		return domainError(http.StatusNotFound, "Journal entry not found")
	}
	if s.search != nil {
		s.search.DeleteEntry(entryID)
	}
	return nil
}

func (s *Service) ToggleJournalFavorite(ctx context.Context, userID, entryID string) (map[string]any, error) {
	isFavorite, err := s.store.ToggleJournalFavorite(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if entry, err := s.store.GetJournalEntry(ctx, userID, entryID); err == nil {
		s.indexJournalEntry(entry)
	}
	return map[string]any{"isFavorite": isFavorite}, nil
}

func (s *Service) JournalStats(ctx context.Context, userID string) (map[string]any, error) {
	stats, err := s.store.JournalStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total":     stats.Total,
		"favorites": stats.Favorites,
		"thisWeek":  stats.ThisWeek,
		"byMentor":  stats.ByMentor,
	}, nil
}

func (s *Service) indexJournalEntry(entry store.JournalEntry) {
	if s.search == nil {
		return
	}
	mentor := ""
	if entry.Mentor != nil {
		mentor = *entry.Mentor
	}
	s.search.IndexEntry(search.Record{
		ID:         entry.ID,
		UserID:     entry.UserID,
		Mentor:     mentor,
		Title:      entry.Title,
		Content:    entry.Content,
		Tags:       entry.Tags,
		IsFavorite: entry.IsFavorite,
		CreatedAt:  entry.CreatedAt.Unix(),
	})
}

func journalView(e store.JournalEntry) map[string]any {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"id":         e.ID,
		"title":      e.Title,
		"content":    e.Content,
		"mentor":     e.Mentor,
		"tags":       tags,
		"isFavorite": e.IsFavorite,
		"createdAt":  e.CreatedAt,
		"updatedAt":  e.UpdatedAt,
	}
}
