// Package cache holds the last known-good snapshots of marketplace data so
// the UI can render before any network round trip completes. Snapshots are
// persisted through the storage port and adopted on startup while they are
// younger than their TTL.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"estatesync/internal/domain/entity"
	"estatesync/internal/infrastructure/metrics"
	"estatesync/internal/infrastructure/storage"
	"estatesync/pkg/logger"
)

const (
	ListingsKey    = "estatesync:listings"
	ChatRoomsKey   = "estatesync:chat_rooms"
	SentMarkersKey = "estatesync:sent_markers"

	DefaultTTL = 5 * time.Minute
)

type listingSnapshot struct {
	Items     []entity.Listing `json:"items"`
	Featured  []entity.Listing `json:"featured"`
	Timestamp time.Time        `json:"timestamp"`
}

// Listings is the snapshot store for the listings collection and its
// featured subset. An empty collection is a valid snapshot; "no snapshot" is
// tracked separately via the capture timestamp.
type Listings struct {
	mu    sync.RWMutex
	store storage.Store
	ttl   time.Duration

	items    []entity.Listing
	featured []entity.Listing
	loadedAt time.Time
}

func NewListings(store storage.Store, ttl time.Duration) *Listings {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Listings{store: store, ttl: ttl}
}

// Load adopts the persisted snapshot if it is still within the TTL. It
// returns true when a valid snapshot was adopted, false when there was none
// or it had expired (expired snapshots are discarded, not adopted).
func (l *Listings) Load(ctx context.Context) bool {
	data, ok, err := l.store.Get(ctx, ListingsKey)
	if err != nil {
		logger.Warn("cache: load listings snapshot: %v", err)
		return false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues("listings").Inc()
		return false
	}

	var snap listingSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("cache: corrupt listings snapshot, discarding: %v", err)
		l.store.Delete(ctx, ListingsKey)
		return false
	}
	if time.Since(snap.Timestamp) >= l.ttl {
		logger.Debug("cache: listings snapshot expired (age %s)", time.Since(snap.Timestamp))
		metrics.CacheMisses.WithLabelValues("listings").Inc()
		return false
	}

	l.mu.Lock()
	l.items = snap.Items
	l.featured = snap.Featured
	l.loadedAt = snap.Timestamp
	l.mu.Unlock()

	metrics.CacheHits.WithLabelValues("listings").Inc()
	return true
}

// Replace installs fresh collections and persists them with the current
// timestamp.
func (l *Listings) Replace(ctx context.Context, items, featured []entity.Listing) {
	l.mu.Lock()
	l.items = items
	l.featured = featured
	l.loadedAt = time.Now()
	l.mu.Unlock()

	l.persist(ctx)
}

// IsStale reports whether a refresh is due: no snapshot was ever captured,
// or the TTL has elapsed since the last one.
func (l *Listings) IsStale() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.loadedAt.IsZero() {
		return true
	}
	return time.Since(l.loadedAt) >= l.ttl
}

func (l *Listings) All() []entity.Listing {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]entity.Listing, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Listings) Featured() []entity.Listing {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]entity.Listing, len(l.featured))
	copy(out, l.featured)
	return out
}

func (l *Listings) Get(id string) (entity.Listing, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, item := range l.items {
		if item.ID == id {
			return item, true
		}
	}
	return entity.Listing{}, false
}

// Upsert replaces the listing with the same id, or appends it, then
// persists. The featured subset is updated in place when it holds the same
// id.
func (l *Listings) Upsert(ctx context.Context, listing entity.Listing) {
	l.mu.Lock()
	l.items = upsertListing(l.items, listing)
	for i := range l.featured {
		if l.featured[i].ID == listing.ID {
			l.featured[i] = listing
			break
		}
	}
	l.mu.Unlock()

	l.persist(ctx)
}

func (l *Listings) Remove(ctx context.Context, id string) {
	l.mu.Lock()
	l.items = removeListing(l.items, id)
	l.featured = removeListing(l.featured, id)
	l.mu.Unlock()

	l.persist(ctx)
}

// persist writes the current collections with a fresh timestamp. Stamping at
// save time (not fetch time) keeps snapshots written by realtime mutations
// adoptable after a restart, even when no fetch ever completed.
func (l *Listings) persist(ctx context.Context) {
	l.mu.RLock()
	snap := listingSnapshot{
		Items:     l.items,
		Featured:  l.featured,
		Timestamp: time.Now(),
	}
	l.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		logger.Error("cache: marshal listings snapshot: %v", err)
		return
	}
	if err := l.store.Set(ctx, ListingsKey, data); err != nil {
		// Keep running on the in-memory copy; the next persist retries.
		logger.Warn("cache: persist listings snapshot: %v", err)
	}
}

func upsertListing(items []entity.Listing, listing entity.Listing) []entity.Listing {
	for i := range items {
		if items[i].ID == listing.ID {
			items[i] = listing
			return items
		}
	}
	return append(items, listing)
}

func removeListing(items []entity.Listing, id string) []entity.Listing {
	out := items[:0]
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}
