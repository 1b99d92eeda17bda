package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxJournal = "imperium_journal"

// Meili wraps the Meilisearch client with a background health monitor so
// an outage degrades to the SQL fallback instead of failing requests.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the journal index.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxJournal,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxJournal, err)
	}

	index := m.client.Index(idxJournal)
	filterable := []interface{}{"userId", "mentor", "isFavorite"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxJournal, err)
	}
	searchable := []string{"title", "content", "tags"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxJournal, err)
	}
	sortable := []string{"createdAt"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		log.Printf("search: update sortable attrs for %s: %v", idxJournal, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search returns matching entry ids, newest-first.
func (m *Meili) Search(q Query) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 50
	}

	filters := []string{fmt.Sprintf("userId = %q", q.UserID)}
	if q.Mentor != "" {
		filters = append(filters, fmt.Sprintf("mentor = %q", q.Mentor))
	}
	if q.FavoriteOnly {
		filters = append(filters, "isFavorite = true")
	}

	resp, err := m.client.Index(idxJournal).Search(q.Text, &meili.SearchRequest{
		Limit:  limit,
		Filter: filters,
		Sort:   []string{"createdAt:desc"},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if id := decodeString(hit, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexEntry adds or updates a journal entry in the search index.
func (m *Meili) IndexEntry(record Record) error {
	_, err := m.client.Index(idxJournal).AddDocuments([]Record{record}, nil)
	return err
}

// IndexEntries bulk-indexes journal entries.
func (m *Meili) IndexEntries(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxJournal).AddDocuments(records, nil)
	return err
}

// DeleteEntry removes a journal entry from the search index.
func (m *Meili) DeleteEntry(id string) error {
	_, err := m.client.Index(idxJournal).DeleteDocument(id, nil)
	return err
}
