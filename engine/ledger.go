package engine

import (
	"crypto/sha256"
	"strings"
)

// Ledger deduplicates items within one collection run. Identity wins:
// an item is new only if neither its ID nor its content fingerprint has
// been seen. The ledger is not safe for concurrent use; the engine runs
// a single cooperative loop.
type Ledger struct {
	ids    map[string]struct{}
	prints map[[sha256.Size]byte]struct{}
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		ids:    make(map[string]struct{}),
		prints: make(map[[sha256.Size]byte]struct{}),
	}
}

// Admit records the item and reports whether it was new. Items with an
// empty ID are judged on fingerprint alone; reposts with identical text
// under a different ID are rejected.
func (l *Ledger) Admit(it Item) bool {
	fp := Fingerprint(it.Text)

	if it.ID != "" {
		if _, dup := l.ids[it.ID]; dup {
			return false
		}
	}
	if _, dup := l.prints[fp]; dup {
		return false
	}

	if it.ID != "" {
		l.ids[it.ID] = struct{}{}
	}
	l.prints[fp] = struct{}{}
	return true
}

// Len returns the number of admitted items.
func (l *Ledger) Len() int {
	return len(l.prints)
}

// Fingerprint hashes post text after trimming, lowercasing, and
// collapsing whitespace, so trivial reformatting of the same content
// maps to the same print.
func Fingerprint(text string) [sha256.Size]byte {
	norm := strings.ToLower(strings.TrimSpace(text))
	norm = strings.Join(strings.Fields(norm), " ")
	return sha256.Sum256([]byte(norm))
}
