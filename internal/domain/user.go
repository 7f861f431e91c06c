package domain

import "time"

// User is the domain entity for a user account. Username and Email are both
// unique; registration currently stores the email in both columns.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
