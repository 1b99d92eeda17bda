package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"imperium/api/internal/store"
	"imperium/api/internal/util"
)

const minDilemmaLength = 10

// CreateCouncilDebate puts a dilemma before all three mentors and records
// their counsel plus the synthesized verdict.
func (s *Service) CreateCouncilDebate(ctx context.Context, userID, dilemma string) (map[string]any, error) {
	dilemma = strings.TrimSpace(dilemma)
	if utf8.RuneCountInString(dilemma) < minDilemmaLength {
		return nil, domainError(http.StatusBadRequest, "Please provide a dilemma of at least 10 characters")
	}

	responses, err := s.counsel.Responses(ctx, dilemma)
	if err != nil {
		return nil, err
	}
	verdict, err := s.counsel.Verdict(ctx, dilemma, responses)
	if err != nil {
		return nil, err
	}

	debate, err := s.store.InsertCouncilDebate(ctx, store.CouncilDebate{
		ID:              util.NewID("cnl"),
		UserID:          userID,
		Dilemma:         dilemma,
		MentorResponses: responses,
		Verdict:         verdict,
	})
	if err != nil {
		return nil, err
	}
	return debateView(debate), nil
}

func (s *Service) ListCouncilDebates(ctx context.Context, userID string, limit int) ([]map[string]any, error) {
	debates, err := s.store.ListCouncilDebates(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(debates))
	for _, debate := range debates {
		items = append(items, debateView(debate))
	}
	return items, nil
}

func (s *Service) GetCouncilDebate(ctx context.Context, userID, debateID string) (map[string]any, error) {
	debate, err := s.store.GetCouncilDebate(ctx, userID, debateID)
	if err != nil {
		return nil, err
	}
	return debateView(debate), nil
}

func (s *Service) DeleteCouncilDebate(ctx context.Context, userID, debateID string) error {
	deleted, err := s.store.DeleteCouncilDebate(ctx, userID, debateID)
	if err != nil {
		return err
	}
	if !deleted {
		return domainError(http.StatusNotFound, "Council debate not found")
	}
	return nil
}

func (s *Service) CouncilStats(ctx context.Context, userID string) (map[string]any, error) {
	stats, err := s.store.CouncilStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := map[string]any{
		"total":     stats.Total,
		"thisMonth": stats.ThisMonth,
	}
	if stats.MostRecent != nil {
		view["mostRecent"] = debateView(*stats.MostRecent)
	} else {
		view["mostRecent"] = nil
	}
	return view, nil
}

// SaveCouncilToJournal formats a debate into a journal entry attributed to
// the council as a whole.
func (s *Service) SaveCouncilToJournal(ctx context.Context, userID, debateID string) (map[string]any, error) {
	debate, err := s.store.GetCouncilDebate(ctx, userID, debateID)
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf(`**Your Dilemma:**
%s

**Machiavelli's Counsel:**
%s

**Napoleon's Counsel:**
%s

**Aurelius's Counsel:**
%s

**Council Verdict:**
%s`,
		debate.Dilemma,
		debate.MentorResponses["machiavelli"],
		debate.MentorResponses["napoleon"],
		debate.MentorResponses["aurelius"],
		debate.Verdict,
	)

	title := debate.Dilemma
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:50])
	}
	mentor := "council"
	entry, err := s.store.InsertJournalEntry(ctx, store.JournalEntry{
		ID:      util.NewID("jrn"),
		UserID:  userID,
		Mentor:  &mentor,
		Title:   fmt.Sprintf("Council Debate: %s...", title),
		Content: content,
		Tags:    []string{"council", "machiavelli", "napoleon", "aurelius"},
	})
	if err != nil {
		return nil, err
	}
	s.indexJournalEntry(entry)
	return map[string]any{"journalEntryId": entry.ID}, nil
}

func debateView(d store.CouncilDebate) map[string]any {
	return map[string]any{
		"id":              d.ID,
		"dilemma":         d.Dilemma,
		"mentorResponses": d.MentorResponses,
		"verdict":         d.Verdict,
		"createdAt":       d.CreatedAt,
	}
}
