package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatesync/internal/domain/entity"
	"estatesync/pkg/errors"
)

// fakeAPI is a minimal marketplace backend covering the routes the client
// speaks.
func fakeAPI(t *testing.T) (*httptest.Server, *echo.Echo) {
	t.Helper()
	e := echo.New()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, e
}

func TestListListings(t *testing.T) {
	srv, e := fakeAPI(t)
	e.GET("/properties/", func(c echo.Context) error {
		assert.Equal(t, "20", c.QueryParam("limit"))
		return c.JSON(http.StatusOK, []entity.Listing{
			{ID: "p1", Title: "Lakeside cottage", Type: "sale", Price: 250000, Status: "available"},
			{ID: "p2", Title: "Downtown studio", Type: "rent", Price: 900, Status: "available"},
		})
	})

	client := NewClient(srv.URL, nil)
	listings, err := client.ListListings(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "Lakeside cottage", listings[0].Title)
}

func TestFeaturedListings(t *testing.T) {
	srv, e := fakeAPI(t)
	e.GET("/properties/", func(c echo.Context) error {
		assert.Equal(t, "true", c.QueryParam("featured"))
		return c.JSON(http.StatusOK, []entity.Listing{{ID: "p1"}})
	})

	client := NewClient(srv.URL, nil)
	listings, err := client.FeaturedListings(context.Background(), 6)
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}

func TestListRoomsSendsBearerToken(t *testing.T) {
	srv, e := fakeAPI(t)
	e.GET("/chat/rooms", func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") != "Bearer tok-123" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "missing token"})
		}
		return c.JSON(http.StatusOK, []entity.ChatRoom{
			{ID: "r1", ListingID: "p1", Status: "active", AgentName: "Dana"},
		})
	})

	client := NewClient(srv.URL, nil)

	_, err := client.ListRooms(context.Background())
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))

	client.SetToken("tok-123")
	rooms, err := client.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Dana", rooms[0].AgentName)
}

func TestCreateRoom(t *testing.T) {
	srv, e := fakeAPI(t)
	e.POST("/chat/rooms", func(c echo.Context) error {
		var body map[string]interface{}
		require.NoError(t, c.Bind(&body))
		assert.Equal(t, "p1", body["property_id"])
		return c.JSON(http.StatusCreated, entity.ChatRoom{
			ID:        "r1",
			ListingID: "p1",
			Status:    "active",
			CreatedAt: time.Now(),
		})
	})

	client := NewClient(srv.URL, nil)
	room, err := client.CreateRoom(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "r1", room.ID)
}

func TestSendMessage(t *testing.T) {
	srv, e := fakeAPI(t)
	e.POST("/chat/rooms/:id/messages", func(c echo.Context) error {
		assert.Equal(t, "r1", c.Param("id"))
		var body map[string]string
		require.NoError(t, c.Bind(&body))
		return c.JSON(http.StatusCreated, entity.ChatMessage{
			ID:      "m1",
			RoomID:  c.Param("id"),
			Content: body["content"],
		})
	})

	client := NewClient(srv.URL, nil)
	msg, err := client.SendMessage(context.Background(), "r1", "Is this still available?")
	require.NoError(t, err)
	assert.Equal(t, "Is this still available?", msg.Content)
}

func TestLogin(t *testing.T) {
	srv, e := fakeAPI(t)
	e.POST("/auth/login", func(c echo.Context) error {
		var body map[string]string
		require.NoError(t, c.Bind(&body))
		if body["password"] != "hunter2" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "bad credentials"})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"access_token": "tok-456",
			"user":         entity.User{ID: "u1", Email: body["email"]},
		})
	})

	client := NewClient(srv.URL, nil)
	session, err := client.Login(context.Background(), "a@b.c", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-456", session.Token)
	assert.Equal(t, "u1", session.User.ID)

	_, err = client.Login(context.Background(), "a@b.c", "wrong")
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))
}

func TestErrorMapping(t *testing.T) {
	srv, e := fakeAPI(t)
	e.GET("/properties/:id", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "not found"})
	})

	client := NewClient(srv.URL, nil)
	_, err := client.GetListing(context.Background(), "p404")
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestNetworkErrorCode(t *testing.T) {
	// Nothing listens here.
	client := NewClient("http://127.0.0.1:1", nil)
	_, err := client.ListListings(context.Background(), 1)
	assert.True(t, errors.Is(err, "NETWORK_ERROR"))
}
