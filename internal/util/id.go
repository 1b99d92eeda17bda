// Package util holds small helpers shared across the service.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// 12 random bytes keep ids short enough to read in logs.
const idRandomBytes = 12

// NewID returns a random identifier, prefixed like "usr_3f2a9c..." when
// a prefix is given.
func NewID(prefix string) string {
	buf := make([]byte, idRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand does not fail on supported platforms
	}
	suffix := hex.EncodeToString(buf)
	if prefix == "" {
		return suffix
	}
	return prefix + "_" + suffix
}
