package models

import "time"

// User is an anonymous participant known to the directory.
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}
