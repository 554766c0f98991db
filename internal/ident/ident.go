// Package ident generates prefixed unique identifiers for domain entities.
// IDs look like "mkt_2f1c9a08c3de4b6c9e71d0a4f5b2c8e1" — the prefix makes
// log lines and store keys self-describing.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// Entity prefixes.
const (
	PrefixMarket  = "mkt"
	PrefixOutcome = "out"
	PrefixBet     = "bet"
	PrefixUser    = "usr"
)

// New returns a fresh identifier with the given prefix.
func New(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Market returns a new market ID.
func Market() string { return New(PrefixMarket) }

// Bet returns a new bet ID.
func Bet() string { return New(PrefixBet) }

// User returns a new user ID.
func User() string { return New(PrefixUser) }

// HasPrefix reports whether id carries the given entity prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_")
}
