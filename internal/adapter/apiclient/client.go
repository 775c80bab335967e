// Package apiclient is the HTTP client for the marketplace REST API. It
// speaks the /api/v1 surface the backend exposes and maps transport and
// status failures onto the shared error taxonomy; it performs no caching of
// its own.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"estatesync/internal/domain/entity"
	"estatesync/pkg/errors"
)

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// SetToken installs the bearer token attached to authenticated requests.
// An empty token sends requests anonymously.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ListListings fetches up to limit listings. limit <= 0 means the server
// default.
func (c *Client) ListListings(ctx context.Context, limit int) ([]entity.Listing, error) {
	path := "/properties/"
	if limit > 0 {
		path = fmt.Sprintf("/properties/?limit=%d", limit)
	}
	var listings []entity.Listing
	if err := c.get(ctx, path, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// FeaturedListings fetches the featured subset shown on the landing page.
func (c *Client) FeaturedListings(ctx context.Context, limit int) ([]entity.Listing, error) {
	path := fmt.Sprintf("/properties/?featured=true&limit=%d", limit)
	var listings []entity.Listing
	if err := c.get(ctx, path, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// GetListing fetches a single listing with its media attached.
func (c *Client) GetListing(ctx context.Context, id string) (*entity.Listing, error) {
	var listing entity.Listing
	if err := c.get(ctx, "/properties/"+id, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListRooms fetches the authenticated user's chat rooms.
func (c *Client) ListRooms(ctx context.Context) ([]entity.ChatRoom, error) {
	var rooms []entity.ChatRoom
	if err := c.get(ctx, "/chat/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom opens (or returns the existing) chat room for a listing.
func (c *Client) CreateRoom(ctx context.Context, listingID string) (*entity.ChatRoom, error) {
	body := map[string]interface{}{
		"property_id":     listingID,
		"room_type":       "private",
		"participant_ids": []string{},
	}
	var room entity.ChatRoom
	if err := c.post(ctx, "/chat/rooms", body, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListMessages fetches the message history of a room, newest last.
func (c *Client) ListMessages(ctx context.Context, roomID string, limit int) ([]entity.ChatMessage, error) {
	path := fmt.Sprintf("/chat/rooms/%s/messages?limit=%d", roomID, limit)
	var messages []entity.ChatMessage
	if err := c.get(ctx, path, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a text message into a room and returns the stored record.
func (c *Client) SendMessage(ctx context.Context, roomID, content string) (*entity.ChatMessage, error) {
	body := map[string]interface{}{
		"content":      content,
		"message_type": "text",
	}
	var message entity.ChatMessage
	if err := c.post(ctx, fmt.Sprintf("/chat/rooms/%s/messages", roomID), body, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// Login exchanges credentials for a bearer token and user record. The token
// is not installed on the client automatically.
func (c *Client) Login(ctx context.Context, email, password string) (*entity.AuthSession, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var out struct {
		AccessToken string      `json:"access_token"`
		User        entity.User `json:"user"`
	}
	if err := c.post(ctx, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &entity.AuthSession{Token: out.AccessToken, User: out.User}, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Internal("encode request body", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data), out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Internal("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Network(fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.FromStatus(resp.StatusCode, fmt.Sprintf("%s %s", method, path))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Internal(fmt.Sprintf("decode %s response", path), err)
	}
	return nil
}
