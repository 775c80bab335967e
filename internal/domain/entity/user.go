package entity

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"` // "buyer", "seller", "agent", "admin"
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthSession is the bearer token plus the user record it belongs to, as
// persisted by the auth store between runs.
type AuthSession struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
