// Package ids generates identifiers used across the engine: position ids,
// book-resolver attempt ids, trade-ledger ids.
package ids

import "github.com/google/uuid"

// New returns a fresh random identifier with the given prefix, e.g.
// "pos-3b2e...".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
