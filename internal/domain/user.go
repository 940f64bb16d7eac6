package domain

import "time"

// User represents a platform account. Username doubles as the project owner identity.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}
