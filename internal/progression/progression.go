// Package progression implements the XP/leveling calculator and the path
// node state machine. Everything here is pure: callers load a snapshot,
// apply a transition, and persist the returned outcome atomically.
package progression

import "errors"

// XPPerLevel is the fixed threshold; level 1 starts at XP 0.
const XPPerLevel = 1000

// DecreeCompletionXP is awarded when a decree transitions to completed.
const DecreeCompletionXP = 100

type Status string

const (
	StatusLocked    Status = "locked"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

var (
	ErrInvalidAmount = errors.New("xp amount must be positive")
	ErrNodeNotFound  = errors.New("path node not found")
	ErrQuestNotFound = errors.New("quest not found")
)

type Quest struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type Node struct {
	NodeID      string
	Title       string
	Realm       string
	Status      Status
	Description string
	Quests      []Quest
	XPReward    int
	// Rewarded records that this node's XP has been granted. The award
	// fires at most once even if quest state is rewritten afterwards.
	Rewarded bool
}

// Award is the result of applying an XP delta.
type Award struct {
	XP        int
	Level     int
	LeveledUp bool
	Gained    int
}

// Level maps accumulated XP to a level number.
func Level(xp int) int {
	return xp/XPPerLevel + 1
}

// ApplyXP adds delta to the current XP and recomputes the level. Deltas
// that are zero or negative are rejected.
func ApplyXP(xp, level, delta int) (Award, error) {
	if delta <= 0 {
		return Award{}, ErrInvalidAmount
	}
	newXP := xp + delta
	newLevel := Level(newXP)
	return Award{
		XP:        newXP,
		Level:     newLevel,
		LeveledUp: newLevel > level,
		Gained:    delta,
	}, nil
}

// Outcome is the full effect of a quest update over a snapshot of the
// user's nodes and XP.
type Outcome struct {
	Nodes          []Node
	NodeIndex      int
	NodeCompleted  bool
	XPAwarded      int
	UnlockedNodeID string
	XP             int
	Level          int
	LeveledUp      bool
}

// CompleteQuest marks a quest and, when that completes the active node,
// performs the node-completed transition: record the reward, grant the
// node's XP, and activate the lowest-ordered locked node. Node order is
// the order of the nodes slice. Re-marking an already-completed quest is
// a no-op for rewards: the Rewarded flag, not derived quest state, gates
// the award.
func CompleteQuest(nodes []Node, nodeID, questID string, completed bool, xp, level int) (Outcome, error) {
	out := Outcome{
		Nodes:     cloneNodes(nodes),
		NodeIndex: -1,
		XP:        xp,
		Level:     level,
	}

	for i := range out.Nodes {
		if out.Nodes[i].NodeID == nodeID {
			out.NodeIndex = i
			break
		}
	}
	if out.NodeIndex == -1 {
		return Outcome{}, ErrNodeNotFound
	}

	node := &out.Nodes[out.NodeIndex]
	quest := findQuest(node.Quests, questID)
	if quest == nil {
		return Outcome{}, ErrQuestNotFound
	}
	quest.Completed = completed

	if !completed || !allQuestsCompleted(node.Quests) {
		return out, nil
	}
	if node.Status != StatusActive || node.Rewarded {
		return out, nil
	}

	node.Status = StatusCompleted
	node.Rewarded = true
	out.NodeCompleted = true

	if node.XPReward > 0 {
		award, err := ApplyXP(xp, level, node.XPReward)
		if err != nil {
			return Outcome{}, err
		}
		out.XPAwarded = award.Gained
		out.XP = award.XP
		out.Level = award.Level
		out.LeveledUp = award.LeveledUp
	}

	for i := range out.Nodes {
		if out.Nodes[i].Status == StatusLocked {
			out.Nodes[i].Status = StatusActive
			out.UnlockedNodeID = out.Nodes[i].NodeID
			break
		}
	}

	return out, nil
}

// ActiveCount reports how many nodes are active. After any successful
// unlock at most one node may be active.
func ActiveCount(nodes []Node) int {
	count := 0
	for _, node := range nodes {
		if node.Status == StatusActive {
			count++
		}
	}
	return count
}

func findQuest(quests []Quest, questID string) *Quest {
	for i := range quests {
		if quests[i].ID == questID {
			return &quests[i]
		}
	}
	return nil
}

func allQuestsCompleted(quests []Quest) bool {
	for _, q := range quests {
		if !q.Completed {
			return false
		}
	}
	return true
}

func cloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	for i := range out {
		quests := make([]Quest, len(nodes[i].Quests))
		copy(quests, nodes[i].Quests)
		out[i].Quests = quests
	}
	return out
}
