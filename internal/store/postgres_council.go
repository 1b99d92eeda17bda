package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const councilColumns = `id, user_id, dilemma, mentor_responses, verdict, created_at`

func scanCouncilDebate(scanner interface{ Scan(...any) error }) (CouncilDebate, error) {
	var debate CouncilDebate
	var responsesRaw []byte
	err := scanner.Scan(
		&debate.ID, &debate.UserID, &debate.Dilemma, &responsesRaw,
		&debate.Verdict, &debate.CreatedAt,
	)
	if err != nil {
		return CouncilDebate{}, err
	}
	if err := json.Unmarshal(responsesRaw, &debate.MentorResponses); err != nil {
		return CouncilDebate{}, fmt.Errorf("decode mentor responses: %w", err)
	}
	return debate, nil
}

func (s *PostgresStore) InsertCouncilDebate(ctx context.Context, debate CouncilDebate) (CouncilDebate, error) {
	responsesRaw, err := json.Marshal(debate.MentorResponses)
	if err != nil {
		return CouncilDebate{}, fmt.Errorf("encode mentor responses: %w", err)
	}
	return scanCouncilDebate(s.db.QueryRowContext(ctx, `
		INSERT INTO council_debates (id, user_id, dilemma, mentor_responses, verdict)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+councilColumns,
		debate.ID, debate.UserID, debate.Dilemma, responsesRaw, debate.Verdict))
}

func (s *PostgresStore) ListCouncilDebates(ctx context.Context, userID string, limit int) ([]CouncilDebate, error) {
	query := `SELECT ` + councilColumns + ` FROM council_debates WHERE user_id=$1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $2`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list council debates: %w", err)
	}
	defer rows.Close()

	debates := []CouncilDebate{}
	for rows.Next() {
		debate, err := scanCouncilDebate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan council debate: %w", err)
		}
		debates = append(debates, debate)
	}
	return debates, rows.Err()
}

func (s *PostgresStore) GetCouncilDebate(ctx context.Context, userID, debateID string) (CouncilDebate, error) {
	return scanCouncilDebate(s.db.QueryRowContext(ctx,
		`SELECT `+councilColumns+` FROM council_debates WHERE id=$1 AND user_id=$2`, debateID, userID))
}

func (s *PostgresStore) DeleteCouncilDebate(ctx context.Context, userID, debateID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM council_debates WHERE id=$1 AND user_id=$2`, debateID, userID)
	if err != nil {
		return false, fmt.Errorf("delete council debate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete council debate affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CouncilStats(ctx context.Context, userID string) (CouncilStats, error) {
	var stats CouncilStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '30 days')
		FROM council_debates WHERE user_id=$1
	`, userID).Scan(&stats.Total, &stats.ThisMonth)
	if err != nil {
		return CouncilStats{}, fmt.Errorf("council stats: %w", err)
	}

	recent, err := scanCouncilDebate(s.db.QueryRowContext(ctx,
		`SELECT `+councilColumns+` FROM council_debates WHERE user_id=$1 ORDER BY created_at DESC LIMIT 1`, userID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return CouncilStats{}, fmt.Errorf("recent council debate: %w", err)
	}
	if err == nil {
		stats.MostRecent = &recent
	}
	return stats, nil
}
