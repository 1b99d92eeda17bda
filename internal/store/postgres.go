package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"imperium/api/internal/progression"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, name, email, password_hash, level, xp, streak, energy, goal,
	selected_mentor_id, active_mentor_id, sound_enabled, notifications_enabled,
	has_completed_onboarding, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Level, &user.XP, &user.Streak, &user.Energy, &user.Goal,
		&user.SelectedMentorID, &user.ActiveMentorID,
		&user.SoundEnabled, &user.NotificationsEnabled, &user.HasCompletedOnboarding,
		&user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, level, xp, streak, energy,
			sound_enabled, notifications_enabled, has_completed_onboarding)
		VALUES ($1, $2, $3, $4, 1, 0, 0, 100, FALSE, FALSE, FALSE)
	`, user.ID, user.Name, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (s *PostgresStore) UpdateUserName(ctx context.Context, userID, name string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET name=$2, updated_at=NOW() WHERE id=$1
		RETURNING `+userColumns, userID, name))
}

func (s *PostgresStore) UpdateUserSettings(ctx context.Context, userID string, soundEnabled, notificationsEnabled *bool) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET
			sound_enabled = COALESCE($2, sound_enabled),
			notifications_enabled = COALESCE($3, notifications_enabled),
			updated_at = NOW()
		WHERE id=$1
		RETURNING `+userColumns, userID, soundEnabled, notificationsEnabled))
}

func (s *PostgresStore) UpdateUserMentor(ctx context.Context, userID, mentorID string, setAsActive bool) (User, error) {
	if setAsActive {
		return scanUser(s.db.QueryRowContext(ctx, `
			UPDATE users SET selected_mentor_id=$2, active_mentor_id=$2, updated_at=NOW()
			WHERE id=$1 RETURNING `+userColumns, userID, mentorID))
	}
	return scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET active_mentor_id=$2, updated_at=NOW()
		WHERE id=$1 RETURNING `+userColumns, userID, mentorID))
}

func (s *PostgresStore) CompleteOnboarding(ctx context.Context, userID string, goal *string, soundEnabled, notificationsEnabled bool) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET goal=$2, sound_enabled=$3, notifications_enabled=$4,
			has_completed_onboarding=TRUE, updated_at=NOW()
		WHERE id=$1 RETURNING `+userColumns, userID, goal, soundEnabled, notificationsEnabled))
}

// AddXP applies the delta and recomputes the level in a single statement,
// so concurrent awards to the same user never lose an update.
func (s *PostgresStore) AddXP(ctx context.Context, userID string, amount int) (xp, level int, err error) {
	err = s.db.QueryRowContext(ctx, `
		UPDATE users SET xp = xp + $2, level = (xp + $2) / $3 + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING xp, level
	`, userID, amount, progression.XPPerLevel).Scan(&xp, &level)
	if err != nil {
		return 0, 0, err
	}
	return xp, level, nil
}

func (s *PostgresStore) AdjustEnergy(ctx context.Context, userID string, amount int) (int, error) {
	var energy int
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET energy = LEAST(100, GREATEST(0, energy + $2)), updated_at = NOW()
		WHERE id = $1
		RETURNING energy
	`, userID, amount).Scan(&energy)
	if err != nil {
		return 0, err
	}
	return energy, nil
}

func (s *PostgresStore) IncrementStreak(ctx context.Context, userID string) (int, error) {
	var streak int
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET streak = streak + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING streak
	`, userID).Scan(&streak)
	if err != nil {
		return 0, err
	}
	return streak, nil
}

// ResetProgress restores the user's stats to registration defaults and
// deletes everything they own, as one commit/rollback unit.
func (s *PostgresStore) ResetProgress(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE users SET level=1, xp=0, streak=0, energy=100, goal=NULL,
			selected_mentor_id=NULL, active_mentor_id=NULL,
			has_completed_onboarding=FALSE, updated_at=NOW()
		WHERE id=$1
	`, userID)
	if err != nil {
		return fmt.Errorf("reset user: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}

	for _, table := range []string{"decrees", "journal_entries", "path_nodes", "council_debates"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id=$1`, userID); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserCounts(ctx context.Context, userID string) (UserCounts, error) {
	var counts UserCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM decrees WHERE user_id=$1),
			(SELECT COUNT(*) FROM decrees WHERE user_id=$1 AND status='completed'),
			(SELECT COUNT(*) FROM decrees WHERE user_id=$1 AND status='active'),
			(SELECT COUNT(*) FROM journal_entries WHERE user_id=$1),
			(SELECT COUNT(*) FROM council_debates WHERE user_id=$1)
	`, userID).Scan(
		&counts.TotalDecrees, &counts.CompletedDecrees, &counts.ActiveDecrees,
		&counts.JournalEntries, &counts.CouncilSessions,
	)
	if err != nil {
		return UserCounts{}, fmt.Errorf("user counts: %w", err)
	}
	return counts, nil
}

// Refresh sessions (Postgres fallback; Redis is preferred when configured).

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM refresh_sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti=$1 AND expires_at > NOW())`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}
