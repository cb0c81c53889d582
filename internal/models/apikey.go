package models

// APIKey represents an admin API key record in the database.
type APIKey struct {
	ID        int64
	KeyPrefix string
	KeyHash   []byte
	CreatedAt int64
	RevokedAt *int64
}
