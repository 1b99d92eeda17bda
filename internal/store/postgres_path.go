package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"imperium/api/internal/progression"
	"imperium/api/internal/util"
)

const pathNodeColumns = `id, user_id, node_id, title, realm, status, description, quests, xp_reward, rewarded, sort_order, created_at`

func scanPathNode(scanner interface{ Scan(...any) error }) (PathNode, error) {
	var node PathNode
	var questsRaw []byte
	err := scanner.Scan(
		&node.ID, &node.UserID, &node.NodeID, &node.Title, &node.Realm,
		&node.Status, &node.Description, &questsRaw, &node.XPReward,
		&node.Rewarded, &node.SortOrder, &node.CreatedAt,
	)
	if err != nil {
		return PathNode{}, err
	}
	if err := json.Unmarshal(questsRaw, &node.Quests); err != nil {
		return PathNode{}, fmt.Errorf("decode quests: %w", err)
	}
	if node.Quests == nil {
		node.Quests = []progression.Quest{}
	}
	return node, nil
}

func (s *PostgresStore) CountPathNodes(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM path_nodes WHERE user_id=$1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count path nodes: %w", err)
	}
	return count, nil
}

// SeedPath inserts the template for a user. ON CONFLICT DO NOTHING keeps
// the seeding idempotent when two first fetches race.
func (s *PostgresStore) SeedPath(ctx context.Context, userID string, nodes []progression.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := seedPathTx(ctx, tx, userID, nodes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

func seedPathTx(ctx context.Context, tx *sql.Tx, userID string, nodes []progression.Node) error {
	for i, node := range nodes {
		quests := node.Quests
		if quests == nil {
			quests = []progression.Quest{}
		}
		questsRaw, err := json.Marshal(quests)
		if err != nil {
			return fmt.Errorf("encode quests: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO path_nodes (id, user_id, node_id, title, realm, status, description, quests, xp_reward, rewarded, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (user_id, node_id) DO NOTHING
		`, util.NewID("node"), userID, node.NodeID, node.Title, node.Realm,
			node.Status, node.Description, questsRaw, node.XPReward, node.Rewarded, i)
		if err != nil {
			return fmt.Errorf("insert path node %s: %w", node.NodeID, err)
		}
	}
	return nil
}

func (s *PostgresStore) ListPathNodes(ctx context.Context, userID string) ([]PathNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pathNodeColumns+` FROM path_nodes WHERE user_id=$1 ORDER BY sort_order`, userID)
	if err != nil {
		return nil, fmt.Errorf("list path nodes: %w", err)
	}
	defer rows.Close()

	nodes := []PathNode{}
	for rows.Next() {
		node, err := scanPathNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan path node: %w", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func (s *PostgresStore) GetPathNode(ctx context.Context, userID, nodeID string) (PathNode, error) {
	return scanPathNode(s.db.QueryRowContext(ctx,
		`SELECT `+pathNodeColumns+` FROM path_nodes WHERE user_id=$1 AND node_id=$2`, userID, nodeID))
}

// UpdateQuest runs the whole quest transition in one transaction: lock
// the user's nodes and XP, apply the pure state machine, persist whatever
// changed. The completed node is written before the unlocked one so the
// single-active partial index never trips mid-transaction.
func (s *PostgresStore) UpdateQuest(ctx context.Context, userID, nodeID, questID string, completed bool) (QuestResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QuestResult{}, fmt.Errorf("begin quest tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+pathNodeColumns+` FROM path_nodes WHERE user_id=$1 ORDER BY sort_order FOR UPDATE`, userID)
	if err != nil {
		return QuestResult{}, fmt.Errorf("lock path nodes: %w", err)
	}
	stored := []PathNode{}
	for rows.Next() {
		node, err := scanPathNode(rows)
		if err != nil {
			rows.Close()
			return QuestResult{}, fmt.Errorf("scan path node: %w", err)
		}
		stored = append(stored, node)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return QuestResult{}, err
	}
	rows.Close()

	var xp, level int
	if err := tx.QueryRowContext(ctx,
		`SELECT xp, level FROM users WHERE id=$1 FOR UPDATE`, userID).Scan(&xp, &level); err != nil {
		return QuestResult{}, fmt.Errorf("lock user: %w", err)
	}

	snapshot := make([]progression.Node, len(stored))
	for i, node := range stored {
		snapshot[i] = node.Progress()
	}

	outcome, err := progression.CompleteQuest(snapshot, nodeID, questID, completed, xp, level)
	if err != nil {
		return QuestResult{}, err
	}

	// Persist the target node, then the unlocked one.
	if err := writePathNode(ctx, tx, stored[outcome.NodeIndex].ID, outcome.Nodes[outcome.NodeIndex]); err != nil {
		return QuestResult{}, err
	}
	if outcome.UnlockedNodeID != "" {
		for i, node := range outcome.Nodes {
			if node.NodeID == outcome.UnlockedNodeID {
				if err := writePathNode(ctx, tx, stored[i].ID, node); err != nil {
					return QuestResult{}, err
				}
				break
			}
		}
	}
	if outcome.XPAwarded > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET xp=$2, level=$3, updated_at=NOW() WHERE id=$1`,
			userID, outcome.XP, outcome.Level); err != nil {
			return QuestResult{}, fmt.Errorf("award quest xp: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return QuestResult{}, fmt.Errorf("commit quest: %w", err)
	}

	updated := stored[outcome.NodeIndex]
	applyProgress(&updated, outcome.Nodes[outcome.NodeIndex])
	return QuestResult{
		Node:           updated,
		NodeCompleted:  outcome.NodeCompleted,
		XPAwarded:      outcome.XPAwarded,
		UnlockedNodeID: outcome.UnlockedNodeID,
		XP:             outcome.XP,
		Level:          outcome.Level,
		LeveledUp:      outcome.LeveledUp,
	}, nil
}

func writePathNode(ctx context.Context, tx *sql.Tx, rowID string, node progression.Node) error {
	questsRaw, err := json.Marshal(node.Quests)
	if err != nil {
		return fmt.Errorf("encode quests: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE path_nodes SET status=$2, quests=$3, rewarded=$4 WHERE id=$1`,
		rowID, node.Status, questsRaw, node.Rewarded); err != nil {
		return fmt.Errorf("update path node %s: %w", node.NodeID, err)
	}
	return nil
}

func applyProgress(stored *PathNode, node progression.Node) {
	stored.Status = node.Status
	stored.Quests = node.Quests
	stored.Rewarded = node.Rewarded
}

// ResetPath deletes and reseeds the user's nodes in one transaction.
func (s *PostgresStore) ResetPath(ctx context.Context, userID string, nodes []progression.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset path tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM path_nodes WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("delete path nodes: %w", err)
	}
	if err := seedPathTx(ctx, tx, userID, nodes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset path: %w", err)
	}
	return nil
}
