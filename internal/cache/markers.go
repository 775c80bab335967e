package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"estatesync/internal/infrastructure/storage"
	"estatesync/pkg/logger"
)

type markerSnapshot struct {
	ListingIDs []string  `json:"listing_ids"`
	Timestamp  time.Time `json:"timestamp"`
}

// SentMarkers tracks which listings the current user has already sent an
// initial contact message for, so the auto-composed greeting is only sent
// once. The set never expires; concurrent writers on the same storage key
// are last-write-wins.
type SentMarkers struct {
	mu    sync.RWMutex
	store storage.Store
	ids   map[string]struct{}
}

func NewSentMarkers(store storage.Store) *SentMarkers {
	return &SentMarkers{
		store: store,
		ids:   make(map[string]struct{}),
	}
}

func (s *SentMarkers) Load(ctx context.Context) {
	data, ok, err := s.store.Get(ctx, SentMarkersKey)
	if err != nil {
		logger.Warn("cache: load sent markers: %v", err)
		return
	}
	if !ok {
		return
	}

	var snap markerSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("cache: corrupt sent markers, discarding: %v", err)
		s.store.Delete(ctx, SentMarkersKey)
		return
	}

	s.mu.Lock()
	s.ids = make(map[string]struct{}, len(snap.ListingIDs))
	for _, id := range snap.ListingIDs {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()
}

func (s *SentMarkers) Has(listingID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.ids[listingID]
	return ok
}

func (s *SentMarkers) Add(ctx context.Context, listingID string) {
	s.mu.Lock()
	s.ids[listingID] = struct{}{}
	s.mu.Unlock()

	s.persist(ctx)
}

func (s *SentMarkers) Remove(ctx context.Context, listingID string) {
	s.mu.Lock()
	delete(s.ids, listingID)
	s.mu.Unlock()

	s.persist(ctx)
}

func (s *SentMarkers) persist(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	data, err := json.Marshal(markerSnapshot{
		ListingIDs: ids,
		Timestamp:  time.Now(),
	})
	if err != nil {
		logger.Error("cache: marshal sent markers: %v", err)
		return
	}
	if err := s.store.Set(ctx, SentMarkersKey, data); err != nil {
		logger.Warn("cache: persist sent markers: %v", err)
	}
}
