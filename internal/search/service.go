package search

import "log"

// Service is the facade over Meilisearch. When Meilisearch is down or not
// configured, Search reports ok=false and the caller uses its SQL fallback.
type Service struct {
	meili *Meili
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili) *Service {
	return &Service{meili: meili}
}

// Search returns matching journal entry ids. ok is false when Meilisearch
// could not serve the query and the caller should fall back to SQL.
func (s *Service) Search(q Query) (ids []string, ok bool) {
	if s.meili == nil || !s.meili.Healthy() {
		return nil, false
	}
	ids, err := s.meili.Search(q)
	if err != nil {
		log.Printf("search: meilisearch error, falling back to sql: %v", err)
		return nil, false
	}
	return ids, true
}

// IndexEntry indexes a journal entry (fire-and-forget).
func (s *Service) IndexEntry(record Record) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexEntry(record); err != nil {
			log.Printf("search: index entry %s: %v", record.ID, err)
		}
	}()
}

// DeleteEntry removes a journal entry from the index (fire-and-forget).
func (s *Service) DeleteEntry(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteEntry(id); err != nil {
			log.Printf("search: delete entry %s: %v", id, err)
		}
	}()
}

// Close shuts down the underlying Meilisearch client, if any.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}
