package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"revenue-market/internal/domain"
)

// EventID computes a deterministic event id using SHA256.
// Formula: SHA256(event_type|seq|timestamp)
// Returns the base58-encoded hash.
func EventID(eventType domain.EventType, seq uint64, timestamp int64) string {
	data := fmt.Sprintf("%s|%d|%d", eventType, seq, timestamp)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
