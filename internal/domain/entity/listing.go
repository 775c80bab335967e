package entity

import "time"

type ListingMedia struct {
	ID        string `json:"id"`
	MediaType string `json:"media_type"` // "image", "video"
	URL       string `json:"url"`
}

type Listing struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type"` // "rent", "sale", "land"
	Price       float64        `json:"price"`
	Location    string         `json:"location"`
	Status      string         `json:"status"` // "available", "pending", "sold", "rented"
	OwnerID     string         `json:"owner_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
	Media       []ListingMedia `json:"media,omitempty"`
}
