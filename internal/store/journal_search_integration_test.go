package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"imperium/api/internal/util"
)

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	return url
}

func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

func seedTestUser(t *testing.T, s *PostgresStore) string {
	t.Helper()
	ctx := context.Background()
	userID := util.NewID("usr")
	err := s.CreateUser(ctx, User{
		ID:           userID,
		Name:         "Integration",
		Email:        userID + "@test.local",
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM users WHERE id=$1`, userID)
	})
	return userID
}

func seedJournalEntry(t *testing.T, s *PostgresStore, userID, title, content string, tags []string, createdAt time.Time) JournalEntry {
	t.Helper()
	ctx := context.Background()
	entry, err := s.InsertJournalEntry(ctx, JournalEntry{
		ID:      util.NewID("jrn"),
		UserID:  userID,
		Title:   title,
		Content: content,
		Tags:    tags,
	})
	if err != nil {
		t.Fatalf("seed journal entry %q: %v", title, err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE journal_entries SET created_at=$1 WHERE id=$2`, createdAt, entry.ID); err != nil {
		t.Fatalf("set created_at for %q: %v", title, err)
	}
	return entry
}

func TestSearchJournalEntriesMatchesSubstringsCaseInsensitively(t *testing.T) {
	s := openTestStore(t)
	userID := seedTestUser(t, s)

	base := time.Now().UTC().Truncate(time.Second)
	inTitle := seedJournalEntry(t, s, userID,
		"The Nature of POWER", "reflections", nil, base.Add(-3*time.Hour))
	inContent := seedJournalEntry(t, s, userID,
		"Morning pages", "true Power is restraint", nil, base.Add(-2*time.Hour))
	inTags := seedJournalEntry(t, s, userID,
		"Reading notes", "on influence", []string{"willpower"}, base.Add(-1*time.Hour))
	seedJournalEntry(t, s, userID,
		"Gratitude", "a quiet day", []string{"calm"}, base)

	entries, err := s.SearchJournalEntries(context.Background(), userID, "power", JournalFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(entries))
	}
	// Newest-first: tags match, then content, then title.
	for i, want := range []string{inTags.ID, inContent.ID, inTitle.ID} {
		if entries[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, entries[i].ID)
		}
	}
}

func TestSearchJournalEntriesScopedToOwner(t *testing.T) {
	s := openTestStore(t)
	owner := seedTestUser(t, s)
	other := seedTestUser(t, s)

	now := time.Now().UTC()
	seedJournalEntry(t, s, owner, "Power plays", "mine", nil, now)
	seedJournalEntry(t, s, other, "Power plays", "not mine", nil, now)

	entries, err := s.SearchJournalEntries(context.Background(), owner, "power", JournalFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != owner {
		t.Fatalf("expected only the owner's entry, got %d entries", len(entries))
	}
}

func TestSearchJournalEntriesEscapesLikeWildcards(t *testing.T) {
	s := openTestStore(t)
	userID := seedTestUser(t, s)

	now := time.Now().UTC()
	literal := seedJournalEntry(t, s, userID, "Gave 100% today", "effort", nil, now.Add(-time.Minute))
	seedJournalEntry(t, s, userID, "Gave 1000 denarii", "tribute", nil, now)

	entries, err := s.SearchJournalEntries(context.Background(), userID, "100%", JournalFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != literal.ID {
		t.Fatalf("expected %% to match literally, got %d entries", len(entries))
	}
}

func TestSearchJournalEntriesHonorsFilters(t *testing.T) {
	s := openTestStore(t)
	userID := seedTestUser(t, s)

	now := time.Now().UTC()
	tagged := seedJournalEntry(t, s, userID, "Power and patience", "a", nil, now.Add(-time.Minute))
	mentor := "aurelius"
	if _, err := s.db.ExecContext(context.Background(),
		`UPDATE journal_entries SET mentor=$1 WHERE id=$2`, mentor, tagged.ID); err != nil {
		t.Fatalf("set mentor: %v", err)
	}
	seedJournalEntry(t, s, userID, "Power and haste", "b", nil, now)

	entries, err := s.SearchJournalEntries(context.Background(), userID, "power", JournalFilter{Mentor: mentor})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != tagged.ID {
		t.Fatalf("expected the mentor filter to apply, got %d entries", len(entries))
	}
}
