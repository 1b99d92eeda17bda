package store

import (
	"time"

	"imperium/api/internal/progression"
)

type User struct {
	ID                     string
	Name                   string
	Email                  string
	PasswordHash           string
	Level                  int
	XP                     int
	Streak                 int
	Energy                 int
	Goal                   *string
	SelectedMentorID       *string
	ActiveMentorID         *string
	SoundEnabled           bool
	NotificationsEnabled   bool
	HasCompletedOnboarding bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type Decree struct {
	ID          string
	UserID      string
	Title       string
	Mentor      *string
	Description string
	Status      string
	Priority    string
	DueDate     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DecreeUpdate carries the optional fields of a decree PATCH; nil means
// leave unchanged.
type DecreeUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *string
}

type DecreeStats struct {
	Total     int
	Completed int
	Active    int
	Pending   int
	ByMentor  []MentorCount
}

type MentorCount struct {
	Mentor string `json:"mentor"`
	Count  int    `json:"count"`
}

type JournalEntry struct {
	ID         string
	UserID     string
	Mentor     *string
	Title      string
	Content    string
	Tags       []string
	IsFavorite bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type JournalUpdate struct {
	Title      *string
	Content    *string
	Tags       *[]string
	IsFavorite *bool
}

type JournalFilter struct {
	Mentor       string
	FavoriteOnly bool
}

type JournalStats struct {
	Total     int
	Favorites int
	ThisWeek  int
	ByMentor  []MentorCount
}

type PathNode struct {
	ID          string
	UserID      string
	NodeID      string
	Title       string
	Realm       string
	Status      progression.Status
	Description string
	Quests      []progression.Quest
	XPReward    int
	Rewarded    bool
	SortOrder   int
	CreatedAt   time.Time
}

// Progress converts the stored row to the pure progression type.
func (n PathNode) Progress() progression.Node {
	return progression.Node{
		NodeID:      n.NodeID,
		Title:       n.Title,
		Realm:       n.Realm,
		Status:      n.Status,
		Description: n.Description,
		Quests:      n.Quests,
		XPReward:    n.XPReward,
		Rewarded:    n.Rewarded,
	}
}

// QuestResult is the persisted effect of a quest update: the refreshed
// node plus everything the transition changed.
type QuestResult struct {
	Node           PathNode
	NodeCompleted  bool
	XPAwarded      int
	UnlockedNodeID string
	XP             int
	Level          int
	LeveledUp      bool
}

type CouncilDebate struct {
	ID              string
	UserID          string
	Dilemma         string
	MentorResponses map[string]string
	Verdict         string
	CreatedAt       time.Time
}

type CouncilStats struct {
	Total      int
	ThisMonth  int
	MostRecent *CouncilDebate
}

type UserCounts struct {
	TotalDecrees     int
	CompletedDecrees int
	ActiveDecrees    int
	JournalEntries   int
	CouncilSessions  int
}
