package progression

// Template returns the fixed five-node path every user starts with. The
// first node is already completed and rewarded, the second is active, the
// rest are locked. Node order here is the unlock order.
func Template() []Node {
	return []Node{
		{
			NodeID:      "awakening",
			Title:       "THE AWAKENING",
			Realm:       "Foundation",
			Status:      StatusCompleted,
			Description: "You have entered the Imperium.",
			Quests: []Quest{
				{ID: "q1", Title: "Choose Your First Mentor", Completed: true},
				{ID: "q2", Title: "Receive Your First Counsel", Completed: true},
			},
			XPReward: 100,
			Rewarded: true,
		},
		{
			NodeID:      "discipline",
			Title:       "THE DISCIPLINE",
			Realm:       "Foundation",
			Status:      StatusActive,
			Description: "Build the foundation of self-mastery.",
			Quests: []Quest{
				{ID: "q3", Title: "Complete 7 Day Streak", Completed: false},
				{ID: "q4", Title: "Follow 5 Decrees", Completed: false},
			},
			XPReward: 200,
		},
		{
			NodeID:      "influence",
			Title:       "THE INFLUENCE",
			Realm:       "Ascension",
			Status:      StatusLocked,
			Description: "Learn to move others and shape outcomes.",
			Quests:      []Quest{},
			XPReward:    300,
		},
		{
			NodeID:      "conquest",
			Title:       "THE CONQUEST",
			Realm:       "Ascension",
			Status:      StatusLocked,
			Description: "Take decisive action in the world.",
			Quests:      []Quest{},
			XPReward:    400,
		},
		{
			NodeID:      "empire",
			Title:       "THE EMPIRE",
			Realm:       "Mastery",
			Status:      StatusLocked,
			Description: "Build your domain and legacy.",
			Quests:      []Quest{},
			XPReward:    500,
		},
	}
}
