package domain

import "time"

// User represents an account holder. PasswordHash is the encoded hash, never plaintext.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
