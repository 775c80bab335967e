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

type roomSnapshot struct {
	Items     []entity.ChatRoom `json:"items"`
	Timestamp time.Time         `json:"timestamp"`
}

// Rooms is the snapshot store for the user's chat rooms. Upserts merge by
// room id, so a room pushed over the realtime channel never duplicates one
// that arrived in a fetch.
type Rooms struct {
	mu    sync.RWMutex
	store storage.Store
	ttl   time.Duration

	rooms    []entity.ChatRoom
	loadedAt time.Time
}

func NewRooms(store storage.Store, ttl time.Duration) *Rooms {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Rooms{store: store, ttl: ttl}
}

func (r *Rooms) Load(ctx context.Context) bool {
	data, ok, err := r.store.Get(ctx, ChatRoomsKey)
	if err != nil {
		logger.Warn("cache: load chat room snapshot: %v", err)
		return false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues("chat_rooms").Inc()
		return false
	}

	var snap roomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("cache: corrupt chat room snapshot, discarding: %v", err)
		r.store.Delete(ctx, ChatRoomsKey)
		return false
	}
	if time.Since(snap.Timestamp) >= r.ttl {
		logger.Debug("cache: chat room snapshot expired (age %s)", time.Since(snap.Timestamp))
		metrics.CacheMisses.WithLabelValues("chat_rooms").Inc()
		return false
	}

	r.mu.Lock()
	r.rooms = snap.Items
	r.loadedAt = snap.Timestamp
	r.mu.Unlock()

	metrics.CacheHits.WithLabelValues("chat_rooms").Inc()
	return true
}

func (r *Rooms) Replace(ctx context.Context, rooms []entity.ChatRoom) {
	r.mu.Lock()
	r.rooms = rooms
	r.loadedAt = time.Now()
	r.mu.Unlock()

	r.persist(ctx)
}

func (r *Rooms) IsStale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.loadedAt.IsZero() {
		return true
	}
	return time.Since(r.loadedAt) >= r.ttl
}

func (r *Rooms) All() []entity.ChatRoom {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.ChatRoom, len(r.rooms))
	copy(out, r.rooms)
	return out
}

func (r *Rooms) Get(id string) (entity.ChatRoom, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range r.rooms {
		if room.ID == id {
			return room, true
		}
	}
	return entity.ChatRoom{}, false
}

// ByListing returns the room tied to the given listing, if any is cached.
func (r *Rooms) ByListing(listingID string) (entity.ChatRoom, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range r.rooms {
		if room.ListingID == listingID {
			return room, true
		}
	}
	return entity.ChatRoom{}, false
}

// Upsert merges the room into the collection by id and persists. When the id
// already exists, non-zero incoming fields override the cached ones and the
// rest are kept, so a partial realtime payload cannot blank out a full
// record.
func (r *Rooms) Upsert(ctx context.Context, room entity.ChatRoom) {
	r.mu.Lock()
	found := false
	for i := range r.rooms {
		if r.rooms[i].ID == room.ID {
			r.rooms[i] = mergeRoom(r.rooms[i], room)
			found = true
			break
		}
	}
	if !found {
		r.rooms = append(r.rooms, room)
	}
	r.mu.Unlock()

	r.persist(ctx)
}

// SetLastMessage updates the denormalized last-message summary of the room
// with the given id. It reports whether the room was found.
func (r *Rooms) SetLastMessage(ctx context.Context, roomID string, last entity.LastMessage) bool {
	r.mu.Lock()
	found := false
	for i := range r.rooms {
		if r.rooms[i].ID == roomID {
			r.rooms[i].LastMessage = &last
			found = true
			break
		}
	}
	r.mu.Unlock()

	if found {
		r.persist(ctx)
	}
	return found
}

func (r *Rooms) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	out := r.rooms[:0]
	for _, room := range r.rooms {
		if room.ID != id {
			out = append(out, room)
		}
	}
	r.rooms = out
	r.mu.Unlock()

	r.persist(ctx)
}

// RemoveByListing drops every room tied to the given listing, e.g. after the
// listing itself disappears from the marketplace.
func (r *Rooms) RemoveByListing(ctx context.Context, listingID string) {
	r.mu.Lock()
	out := r.rooms[:0]
	for _, room := range r.rooms {
		if room.ListingID != listingID {
			out = append(out, room)
		}
	}
	r.rooms = out
	r.mu.Unlock()

	r.persist(ctx)
}

func (r *Rooms) persist(ctx context.Context) {
	r.mu.RLock()
	snap := roomSnapshot{
		Items:     r.rooms,
		Timestamp: time.Now(),
	}
	r.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		logger.Error("cache: marshal chat room snapshot: %v", err)
		return
	}
	if err := r.store.Set(ctx, ChatRoomsKey, data); err != nil {
		logger.Warn("cache: persist chat room snapshot: %v", err)
	}
}

func mergeRoom(current, incoming entity.ChatRoom) entity.ChatRoom {
	merged := current
	if incoming.ListingID != "" {
		merged.ListingID = incoming.ListingID
	}
	if incoming.Name != "" {
		merged.Name = incoming.Name
	}
	if incoming.Status != "" {
		merged.Status = incoming.Status
	}
	if incoming.AgentID != "" {
		merged.AgentID = incoming.AgentID
	}
	if incoming.AgentName != "" {
		merged.AgentName = incoming.AgentName
	}
	if incoming.AgentRating != 0 {
		merged.AgentRating = incoming.AgentRating
	}
	if incoming.CreatedBy != "" {
		merged.CreatedBy = incoming.CreatedBy
	}
	if !incoming.CreatedAt.IsZero() {
		merged.CreatedAt = incoming.CreatedAt
	}
	if incoming.LastMessage != nil {
		merged.LastMessage = incoming.LastMessage
	}
	return merged
}
