// Package token provides script token ID generation.
package token

import (
	"crypto/rand"
)

// IDPrefix marks generated IDs as scriptgate tokens.
const IDPrefix = "sgt_"

const secretLength = 32

var charset = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// Generate returns a new opaque, unguessable token ID.
func Generate() (string, error) {
	b := make([]byte, secretLength)
	randomBytes := make([]byte, secretLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = charset[int(randomBytes[i])%len(charset)]
	}
	return IDPrefix + string(b), nil
}
