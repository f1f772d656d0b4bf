package identity

import "time"

// User represents a registered wallet owner.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Registration carries the data needed to create a user.
type Registration struct {
	Email    string
	FullName string
	Password string
}
