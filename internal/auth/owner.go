package auth

import (
	"strings"

	"golang.org/x/crypto/blake2b"

	"racket/internal/game"
)

// OwnerKey maps an auth user id onto the 32-byte ledger owner.
// The mapping is stable, so a user keeps the same ledger across sessions.
func OwnerKey(userID string) game.Owner {
	return game.Owner(blake2b.Sum256([]byte("racket/owner:" + strings.ToLower(strings.TrimSpace(userID)))))
}
