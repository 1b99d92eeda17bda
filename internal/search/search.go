// Package search indexes journal entries in Meilisearch and answers
// journal search queries. When Meilisearch is not configured or is
// unhealthy, callers fall back to the store's substring search.
package search

// Record is the data indexed per journal entry.
type Record struct {
	ID         string   `json:"id"`
	UserID     string   `json:"userId"`
	Mentor     string   `json:"mentor"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	IsFavorite bool     `json:"isFavorite"`
	CreatedAt  int64    `json:"createdAt"`
}

// Query describes a journal search, always scoped to one user.
type Query struct {
	UserID       string
	Text         string
	Mentor       string
	FavoriteOnly bool
	Limit        int
}
