package models

import (
	"time"
)

// User is a registered desktop client. It holds the long-lived platform API
// key used for outbound calls and the opaque access token presented on
// inbound requests.
type User struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	APIKey      string    `json:"-"`
	AccessToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
