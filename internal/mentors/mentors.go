// Package mentors holds the fixed catalog of mentor personas.
package mentors

// Mentor is one of the three fixed personas users can chat with and
// attribute decrees or journal entries to.
type Mentor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	Philosophy string `json:"philosophy"`
	Color      string `json:"color"`
	Greeting   string `json:"greeting"`
}

var catalog = []Mentor{
	{
		ID:         "machiavelli",
		Name:       "Niccolò Machiavelli",
		Title:      "The Master of Manipulation",
		Subtitle:   "Prince of Political Strategy",
		Philosophy: "Power realism, political strategy, influence",
		Color:      "#5A1818",
		Greeting:   "Power respects only power. What do you seek?",
	},
	{
		ID:         "napoleon",
		Name:       "Napoleon Bonaparte",
		Title:      "The Master of Conquest",
		Subtitle:   "Emperor of Action",
		Philosophy: "Action, conquest, ambition, decisive execution",
		Color:      "#4A5568",
		Greeting:   "Victory favors the bold. What battlefield do you face?",
	},
	{
		ID:         "aurelius",
		Name:       "Marcus Aurelius",
		Title:      "The Master of Self-Command",
		Subtitle:   "Philosopher Emperor",
		Philosophy: "Stoicism, discipline, internal control, virtue under pressure",
		Color:      "#A48D60",
		Greeting:   "True power lies within. What troubles your mind?",
	},
}

// All returns the catalog in its fixed order.
func All() []Mentor {
	out := make([]Mentor, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a mentor; ok is false for unknown ids.
func ByID(id string) (Mentor, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Mentor{}, false
}

// Exists reports whether id names a mentor in the catalog.
func Exists(id string) bool {
	_, ok := ByID(id)
	return ok
}
