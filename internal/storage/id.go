package storage

import (
	"crypto/sha1" //nolint:gosec
	"encoding/hex"

	"github.com/google/uuid"
)

const (
	// IDShort is the display length of report ids.
	IDShort = 7
	// IDMinLen is the shortest prefix Find matches ids against.
	IDMinLen = 4
)

// NewID returns a 40 character hex report id.
func NewID() string {
	sum := sha1.Sum([]byte(uuid.NewString())) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// ShortID truncates id for display.
func ShortID(id string) string {
	if len(id) > IDShort {
		return id[:IDShort]
	}
	return id
}
