package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// MinHashSaltLength is the minimum accepted length of a configured salt.
const MinHashSaltLength = 32

const defaultHashSalt = "groupledger-default-salt-set-LOG_HASH_SALT"

var (
	saltMu   sync.RWMutex
	hashSalt = defaultHashSalt
)

// SetHashSalt replaces the salt used by HashID.
func SetHashSalt(salt string) error {
	if len(salt) < MinHashSaltLength {
		return fmt.Errorf("hash salt must be at least %d characters", MinHashSaltLength)
	}
	saltMu.Lock()
	hashSalt = salt
	saltMu.Unlock()
	return nil
}

// HashID creates a privacy-preserving hash of a member or contact id.
// This allows following one member through the logs without exposing who it is.
func HashID(id string) string {
	saltMu.RLock()
	data := id + ":" + hashSalt
	saltMu.RUnlock()
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeDescription redacts an expense description, keeping its length for debugging.
func SanitizeDescription(desc string) string {
	if desc == "" {
		return "<empty>"
	}
	return fmt.Sprintf("<redacted: %d words, %d chars>", len(strings.Fields(desc)), utf8.RuneCountInString(desc))
}

// SanitizeText is a general-purpose sanitizer for any user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	n := utf8.RuneCountInString(text)
	if n <= 10 {
		return fmt.Sprintf("<%d chars>", n)
	}
	return fmt.Sprintf("%s...<%d chars>", string([]rune(text)[:3]), n)
}
