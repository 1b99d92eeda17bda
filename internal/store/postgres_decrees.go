package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"imperium/api/internal/progression"
)

const decreeColumns = `id, user_id, title, mentor, description, status, priority, due_date, created_at, updated_at`

func scanDecree(scanner interface{ Scan(...any) error }) (Decree, error) {
	var d Decree
	err := scanner.Scan(
		&d.ID, &d.UserID, &d.Title, &d.Mentor, &d.Description,
		&d.Status, &d.Priority, &d.DueDate, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func (s *PostgresStore) InsertDecree(ctx context.Context, decree Decree) (Decree, error) {
	return scanDecree(s.db.QueryRowContext(ctx, `
		INSERT INTO decrees (id, user_id, title, mentor, description, status, priority, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+decreeColumns,
		decree.ID, decree.UserID, decree.Title, decree.Mentor, decree.Description,
		decree.Status, decree.Priority, decree.DueDate))
}

func (s *PostgresStore) ListDecrees(ctx context.Context, userID, status, mentor string) ([]Decree, error) {
	query := `SELECT ` + decreeColumns + ` FROM decrees WHERE user_id=$1`
	args := []any{userID}
	if status != "" {
		args = append(args, status)
		query += ` AND status=$` + strconv.Itoa(len(args))
	}
	if mentor != "" {
		args = append(args, mentor)
		query += ` AND mentor=$` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decrees: %w", err)
	}
	defer rows.Close()

	decrees := []Decree{}
	for rows.Next() {
		decree, err := scanDecree(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decree: %w", err)
		}
		decrees = append(decrees, decree)
	}
	return decrees, rows.Err()
}

func (s *PostgresStore) GetDecree(ctx context.Context, userID, decreeID string) (Decree, error) {
	return scanDecree(s.db.QueryRowContext(ctx,
		`SELECT `+decreeColumns+` FROM decrees WHERE id=$1 AND user_id=$2`, decreeID, userID))
}

func (s *PostgresStore) UpdateDecree(ctx context.Context, userID, decreeID string, update DecreeUpdate) (Decree, error) {
	sets := []string{}
	args := []any{decreeID, userID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+"=$"+strconv.Itoa(len(args)))
	}
	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.Priority != nil {
		add("priority", *update.Priority)
	}
	if update.DueDate != nil {
		add("due_date", *update.DueDate)
	}
	sets = append(sets, "updated_at=NOW()")

	return scanDecree(s.db.QueryRowContext(ctx,
		`UPDATE decrees SET `+strings.Join(sets, ", ")+` WHERE id=$1 AND user_id=$2 RETURNING `+decreeColumns,
		args...))
}

func (s *PostgresStore) DeleteDecree(ctx context.Context, userID, decreeID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM decrees WHERE id=$1 AND user_id=$2`, decreeID, userID)
	if err != nil {
		return false, fmt.Errorf("delete decree: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete decree affected: %w", err)
	}
	return affected > 0, nil
}

// CompleteDecree marks the decree completed and awards the fixed XP as
// one commit/rollback unit. Completing a decree twice is not an error but
// awards nothing the second time.
func (s *PostgresStore) CompleteDecree(ctx context.Context, userID, decreeID string) (Decree, int, int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Decree{}, 0, 0, 0, fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	decree, err := scanDecree(tx.QueryRowContext(ctx,
		`SELECT `+decreeColumns+` FROM decrees WHERE id=$1 AND user_id=$2 FOR UPDATE`, decreeID, userID))
	if err != nil {
		return Decree{}, 0, 0, 0, err
	}

	var xp, level int
	if err := tx.QueryRowContext(ctx,
		`SELECT xp, level FROM users WHERE id=$1 FOR UPDATE`, userID).Scan(&xp, &level); err != nil {
		return Decree{}, 0, 0, 0, fmt.Errorf("lock user: %w", err)
	}

	if decree.Status == "completed" {
		if err := tx.Commit(); err != nil {
			return Decree{}, 0, 0, 0, fmt.Errorf("commit complete: %w", err)
		}
		return decree, 0, xp, level, nil
	}

	decree, err = scanDecree(tx.QueryRowContext(ctx, `
		UPDATE decrees SET status='completed', updated_at=NOW()
		WHERE id=$1 AND user_id=$2 RETURNING `+decreeColumns, decreeID, userID))
	if err != nil {
		return Decree{}, 0, 0, 0, fmt.Errorf("complete decree: %w", err)
	}

	award, err := progression.ApplyXP(xp, level, progression.DecreeCompletionXP)
	if err != nil {
		return Decree{}, 0, 0, 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET xp=$2, level=$3, updated_at=NOW() WHERE id=$1`,
		userID, award.XP, award.Level); err != nil {
		return Decree{}, 0, 0, 0, fmt.Errorf("award decree xp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Decree{}, 0, 0, 0, fmt.Errorf("commit complete: %w", err)
	}
	return decree, award.Gained, award.XP, award.Level, nil
}

func (s *PostgresStore) DecreeStats(ctx context.Context, userID string) (DecreeStats, error) {
	var stats DecreeStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status='completed'),
			COUNT(*) FILTER (WHERE status='active'),
			COUNT(*) FILTER (WHERE status='pending')
		FROM decrees WHERE user_id=$1
	`, userID).Scan(&stats.Total, &stats.Completed, &stats.Active, &stats.Pending)
	if err != nil {
		return DecreeStats{}, fmt.Errorf("decree stats: %w", err)
	}

	stats.ByMentor, err = s.mentorCounts(ctx, "decrees", userID)
	if err != nil {
		return DecreeStats{}, err
	}
	return stats, nil
}

func (s *PostgresStore) mentorCounts(ctx context.Context, table, userID string) ([]MentorCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mentor, COUNT(*) FROM `+table+` WHERE user_id=$1 AND mentor IS NOT NULL GROUP BY mentor ORDER BY mentor`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("mentor counts: %w", err)
	}
	defer rows.Close()

	counts := []MentorCount{}
	for rows.Next() {
		var count MentorCount
		if err := rows.Scan(&count.Mentor, &count.Count); err != nil {
			return nil, fmt.Errorf("scan mentor count: %w", err)
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}
