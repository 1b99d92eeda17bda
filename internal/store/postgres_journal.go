package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const journalColumns = `id, user_id, mentor, title, content, tags, is_favorite, created_at, updated_at`

func scanJournalEntry(scanner interface{ Scan(...any) error }) (JournalEntry, error) {
	var entry JournalEntry
	var tagsRaw []byte
	err := scanner.Scan(
		&entry.ID, &entry.UserID, &entry.Mentor, &entry.Title, &entry.Content,
		&tagsRaw, &entry.IsFavorite, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := json.Unmarshal(tagsRaw, &entry.Tags); err != nil {
		return JournalEntry{}, fmt.Errorf("decode tags: %w", err)
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	return entry, nil
}

func (s *PostgresStore) InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	tags := entry.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsRaw, err := json.Marshal(tags)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("encode tags: %w", err)
	}
	return scanJournalEntry(s.db.QueryRowContext(ctx, `
		INSERT INTO journal_entries (id, user_id, mentor, title, content, tags, is_favorite)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+journalColumns,
		entry.ID, entry.UserID, entry.Mentor, entry.Title, entry.Content, tagsRaw, entry.IsFavorite))
}

func (s *PostgresStore) ListJournalEntries(ctx context.Context, userID string, filter JournalFilter) ([]JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal_entries WHERE user_id=$1`
	args := []any{userID}
	if filter.Mentor != "" {
		args = append(args, filter.Mentor)
		query += ` AND mentor=$` + strconv.Itoa(len(args))
	}
	if filter.FavoriteOnly {
		query += ` AND is_favorite`
	}
	query += ` ORDER BY created_at DESC`

	return s.queryJournalEntries(ctx, query, args...)
}

// SearchJournalEntries is the SQL fallback for journal search: a
// case-insensitive substring match over title, content and tags.
func (s *PostgresStore) SearchJournalEntries(ctx context.Context, userID, search string, filter JournalFilter) ([]JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal_entries
		WHERE user_id=$1 AND (title ILIKE $2 OR content ILIKE $2 OR tags::text ILIKE $2)`
	args := []any{userID, "%" + escapeLike(search) + "%"}
	if filter.Mentor != "" {
		args = append(args, filter.Mentor)
		query += ` AND mentor=$` + strconv.Itoa(len(args))
	}
	if filter.FavoriteOnly {
		query += ` AND is_favorite`
	}
	query += ` ORDER BY created_at DESC`

	return s.queryJournalEntries(ctx, query, args...)
}

// ListJournalEntriesByIDs returns the caller's entries among ids,
// newest-first. Used to hydrate external search hits.
func (s *PostgresStore) ListJournalEntriesByIDs(ctx context.Context, userID string, ids []string) ([]JournalEntry, error) {
	if len(ids) == 0 {
		return []JournalEntry{}, nil
	}
	placeholders := make([]string, len(ids))
	args := []any{userID}
	for i, id := range ids {
		args = append(args, id)
		placeholders[i] = "$" + strconv.Itoa(len(args))
	}
	query := `SELECT ` + journalColumns + ` FROM journal_entries
		WHERE user_id=$1 AND id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY created_at DESC`
	return s.queryJournalEntries(ctx, query, args...)
}

func (s *PostgresStore) queryJournalEntries(ctx context.Context, query string, args ...any) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) GetJournalEntry(ctx context.Context, userID, entryID string) (JournalEntry, error) {
	return scanJournalEntry(s.db.QueryRowContext(ctx,
		`SELECT `+journalColumns+` FROM journal_entries WHERE id=$1 AND user_id=$2`, entryID, userID))
}

func (s *PostgresStore) UpdateJournalEntry(ctx context.Context, userID, entryID string, update JournalUpdate) (JournalEntry, error) {
	sets := []string{}
	args := []any{entryID, userID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+"=$"+strconv.Itoa(len(args)))
	}
	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Content != nil {
		add("content", *update.Content)
	}
	if update.Tags != nil {
		tagsRaw, err := json.Marshal(*update.Tags)
		if err != nil {
			return JournalEntry{}, fmt.Errorf("encode tags: %w", err)
		}
		add("tags", tagsRaw)
	}
	if update.IsFavorite != nil {
		add("is_favorite", *update.IsFavorite)
	}
	sets = append(sets, "updated_at=NOW()")

	return scanJournalEntry(s.db.QueryRowContext(ctx,
		`UPDATE journal_entries SET `+strings.Join(sets, ", ")+` WHERE id=$1 AND user_id=$2 RETURNING `+journalColumns,
		args...))
}

func (s *PostgresStore) DeleteJournalEntry(ctx context.Context, userID, entryID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE id=$1 AND user_id=$2`, entryID, userID)
	if err != nil {
		return false, fmt.Errorf("delete journal entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete journal entry affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ToggleJournalFavorite(ctx context.Context, userID, entryID string) (bool, error) {
	var isFavorite bool
	err := s.db.QueryRowContext(ctx, `
		UPDATE journal_entries SET is_favorite = NOT is_favorite, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING is_favorite
	`, entryID, userID).Scan(&isFavorite)
	if err != nil {
		return false, err
	}
	return isFavorite, nil
}

func (s *PostgresStore) JournalStats(ctx context.Context, userID string) (JournalStats, error) {
	var stats JournalStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_favorite),
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days')
		FROM journal_entries WHERE user_id=$1
	`, userID).Scan(&stats.Total, &stats.Favorites, &stats.ThisWeek)
	if err != nil {
		return JournalStats{}, fmt.Errorf("journal stats: %w", err)
	}

	stats.ByMentor, err = s.mentorCounts(ctx, "journal_entries", userID)
	if err != nil {
		return JournalStats{}, err
	}
	return stats, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
