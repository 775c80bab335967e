// Package provider composes the API client, the snapshot caches, and the
// realtime channel into the single read surface the UI consumes. It adopts
// persisted snapshots synchronously so rendering never waits on the network,
// then refreshes in the background and applies realtime deltas as they
// arrive.
package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"estatesync/internal/cache"
	"estatesync/internal/domain/entity"
	"estatesync/internal/infrastructure/metrics"
	"estatesync/internal/infrastructure/realtime"
	"estatesync/pkg/logger"
)

const (
	listingFetchLimit  = 100
	featuredFetchLimit = 6

	preloadBatchSize  = 3
	preloadBatchDelay = 100 * time.Millisecond
)

// API is the slice of the marketplace client the provider needs.
type API interface {
	ListListings(ctx context.Context, limit int) ([]entity.Listing, error)
	FeaturedListings(ctx context.Context, limit int) ([]entity.Listing, error)
	ListRooms(ctx context.Context) ([]entity.ChatRoom, error)
	CreateRoom(ctx context.Context, listingID string) (*entity.ChatRoom, error)
	SendMessage(ctx context.Context, roomID, content string) (*entity.ChatMessage, error)
}

// Sender is the outbound half of the realtime channel.
type Sender interface {
	Send(v interface{})
}

// Status is the non-fatal health flag surfaced to the UI.
type Status struct {
	LastUpdated time.Time
	Degraded    bool
}

type Provider struct {
	api      API
	listings *cache.Listings
	rooms    *cache.Rooms
	markers  *cache.SentMarkers
	sender   Sender

	refreshing atomic.Bool

	mu          sync.RWMutex
	userID      string
	lastUpdated time.Time
	degraded    bool
}

func New(api API, listings *cache.Listings, rooms *cache.Rooms, markers *cache.SentMarkers) *Provider {
	return &Provider{
		api:      api,
		listings: listings,
		rooms:    rooms,
		markers:  markers,
	}
}

// SetSender attaches the realtime channel used for fire-and-forget outbound
// messages. Without one, SendChat is a no-op.
func (p *Provider) SetSender(sender Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sender = sender
}

// SetUser binds the provider to the authenticated user. Chat rooms are only
// fetched while a user is set.
func (p *Provider) SetUser(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userID = userID
}

// Start adopts any valid persisted snapshots synchronously, then kicks off a
// background refresh. The caller can read cached data as soon as Start
// returns.
func (p *Provider) Start(ctx context.Context) {
	p.markers.Load(ctx)
	if p.listings.Load(ctx) {
		logger.Info("provider: adopted listings snapshot")
	}
	if p.rooms.Load(ctx) {
		logger.Info("provider: adopted chat room snapshot")
	}

	go p.Refresh(ctx)
}

// Refresh fetches all collections in parallel and replaces the caches with
// whatever succeeded. A refresh already in flight makes this call a no-op;
// both staleness triggers firing together cost one fetch, not two.
func (p *Provider) Refresh(ctx context.Context) {
	if !p.refreshing.CompareAndSwap(false, true) {
		logger.Debug("provider: refresh already running")
		return
	}
	defer p.refreshing.Store(false)

	p.mu.RLock()
	userID := p.userID
	p.mu.RUnlock()

	var (
		wg       sync.WaitGroup
		items    []entity.Listing
		featured []entity.Listing
		rooms    []entity.ChatRoom
		itemsErr error
		featErr  error
		roomsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		items, itemsErr = p.api.ListListings(ctx, listingFetchLimit)
	}()
	go func() {
		defer wg.Done()
		featured, featErr = p.api.FeaturedListings(ctx, featuredFetchLimit)
	}()
	if userID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rooms, roomsErr = p.api.ListRooms(ctx)
		}()
	}
	wg.Wait()

	degraded := false

	if itemsErr != nil || featErr != nil {
		if itemsErr != nil {
			logger.Warn("provider: fetch listings: %v", itemsErr)
			metrics.FetchErrors.WithLabelValues("listings").Inc()
		}
		if featErr != nil {
			logger.Warn("provider: fetch featured: %v", featErr)
			metrics.FetchErrors.WithLabelValues("featured").Inc()
		}
		degraded = true
		// Cache-first fallback: keep whatever is in memory, and if memory is
		// empty give the persisted snapshot one more chance. Never clear to
		// empty on a network error.
		if itemsErr != nil && featErr != nil && len(p.listings.All()) == 0 {
			p.listings.Load(ctx)
		}
		if itemsErr == nil {
			p.listings.Replace(ctx, items, p.listings.Featured())
		} else if featErr == nil {
			p.listings.Replace(ctx, p.listings.All(), featured)
		}
	} else {
		p.listings.Replace(ctx, items, featured)
	}

	if userID != "" {
		if roomsErr != nil {
			logger.Warn("provider: fetch chat rooms: %v", roomsErr)
			metrics.FetchErrors.WithLabelValues("chat_rooms").Inc()
			degraded = true
			if len(p.rooms.All()) == 0 {
				p.rooms.Load(ctx)
			}
		} else {
			p.rooms.Replace(ctx, rooms)
		}
	}

	p.mu.Lock()
	p.degraded = degraded
	if !degraded {
		p.lastUpdated = time.Now()
	}
	p.mu.Unlock()
}

// OnVisible is the host's page-visibility trigger: refresh only when the
// cache has gone stale.
func (p *Provider) OnVisible(ctx context.Context) {
	p.refreshIfStale(ctx)
}

// OnFocus is the host's window-focus trigger, same staleness rule.
func (p *Provider) OnFocus(ctx context.Context) {
	p.refreshIfStale(ctx)
}

func (p *Provider) refreshIfStale(ctx context.Context) {
	p.mu.RLock()
	userID := p.userID
	p.mu.RUnlock()

	// Rooms are only fetched for an authenticated user; without one their
	// staleness would be permanent and force a refetch on every trigger.
	if p.listings.IsStale() || (userID != "" && p.rooms.IsStale()) {
		p.Refresh(ctx)
	}
}

func (p *Provider) Listings() []entity.Listing { return p.listings.All() }

func (p *Provider) Featured() []entity.Listing { return p.listings.Featured() }

func (p *Provider) Rooms() []entity.ChatRoom { return p.rooms.All() }

func (p *Provider) RoomByListing(listingID string) (entity.ChatRoom, bool) {
	return p.rooms.ByListing(listingID)
}

func (p *Provider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{LastUpdated: p.lastUpdated, Degraded: p.degraded}
}

// HandleMessage applies an inbound realtime chat message to the cached room
// it belongs to, updating the denormalized last-message summary.
func (p *Provider) HandleMessage(msg entity.ChatMessage) {
	ctx := context.Background()
	ok := p.rooms.SetLastMessage(ctx, msg.RoomID, entity.LastMessage{
		ID:         msg.ID,
		Content:    msg.Content,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		CreatedAt:  msg.CreatedAt,
		IsEdited:   msg.IsEdited,
	})
	if !ok {
		logger.Debug("provider: message for unknown room %s", msg.RoomID)
	}
}

// HandleRoomCreated upserts a room pushed over the realtime channel. Upsert
// merges by id, so a duplicate push cannot create a second entry.
func (p *Provider) HandleRoomCreated(room entity.ChatRoom) {
	p.rooms.Upsert(context.Background(), room)
}

// Handlers wires the provider's mutation paths into a realtime handler set.
// The notification and typing callbacks are the host's to fill in.
func (p *Provider) Handlers() realtime.Handlers {
	return realtime.Handlers{
		OnMessage:     p.HandleMessage,
		OnRoomCreated: p.HandleRoomCreated,
	}
}

// SendChat sends a message over the realtime channel with a client-generated
// temp id for optimistic reconciliation. Fire-and-forget: dropped silently
// when the channel is down.
func (p *Provider) SendChat(roomID, content string) {
	p.mu.RLock()
	sender := p.sender
	p.mu.RUnlock()
	if sender == nil {
		return
	}
	sender.Send(map[string]interface{}{
		"type": realtime.TypeSendMessage,
		"data": realtime.SendMessagePayload{
			TempID:  uuid.New().String(),
			RoomID:  roomID,
			Content: content,
		},
	})
}

// ContactAgent opens (or reuses) the chat room for a listing and sends the
// initial contact message, unless one was already sent for that listing.
// The returned room is cached either way.
func (p *Provider) ContactAgent(ctx context.Context, listingID, greeting string) (*entity.ChatRoom, error) {
	room, err := p.api.CreateRoom(ctx, listingID)
	if err != nil {
		return nil, err
	}
	p.rooms.Upsert(ctx, *room)

	if p.markers.Has(listingID) {
		return room, nil
	}
	if _, err := p.api.SendMessage(ctx, room.ID, greeting); err != nil {
		// The room exists; the greeting can be retried on the next attempt.
		logger.Warn("provider: send greeting for listing %s: %v", listingID, err)
		return room, nil
	}
	p.markers.Add(ctx, listingID)
	return room, nil
}

func (p *Provider) HasContacted(listingID string) bool {
	return p.markers.Has(listingID)
}

func (p *Provider) MarkContacted(ctx context.Context, listingID string) {
	p.markers.Add(ctx, listingID)
}

func (p *Provider) ClearContacted(ctx context.Context, listingID string) {
	p.markers.Remove(ctx, listingID)
}

// PreloadRooms warms the room cache for a page of listings. Listings that
// already have a cached room are skipped; the rest are created in batches of
// three with a short pause between batches so the backend never sees a
// burst. A failing item is logged and skipped, it does not abort the batch.
func (p *Provider) PreloadRooms(ctx context.Context, listingIDs []string) {
	var pending []string
	for _, id := range listingIDs {
		if _, ok := p.rooms.ByListing(id); !ok {
			pending = append(pending, id)
		}
	}

	for start := 0; start < len(pending); start += preloadBatchSize {
		end := start + preloadBatchSize
		if end > len(pending) {
			end = len(pending)
		}

		var wg sync.WaitGroup
		for _, id := range pending[start:end] {
			wg.Add(1)
			go func(listingID string) {
				defer wg.Done()
				room, err := p.api.CreateRoom(ctx, listingID)
				if err != nil {
					logger.Warn("provider: preload room for listing %s: %v", listingID, err)
					return
				}
				p.rooms.Upsert(ctx, *room)
			}(id)
		}
		wg.Wait()

		if end < len(pending) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(preloadBatchDelay):
			}
		}
	}
}
