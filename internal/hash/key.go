// Package hash derives compact, stable identifiers from arbitrary strings.
package hash

import (
	"strconv"

	"github.com/zeebo/xxh3"
)

// Sum64 returns the xxh3 64-bit digest of s.
func Sum64(s string) uint64 {
	return xxh3.HashString(s)
}

// Hex returns the xxh3 digest of the parts joined by "/" as a fixed-width,
// lower-case hex string.
//
// The parts are folded one by one, each digest seeding the next, so no joined
// string is built. Equal inputs always produce equal output across processes
// and releases.
//
// Parameters:
//   - parts: Strings to digest, in order
//
// Returns:
//   - string: 16-character hex digest
//
// Example:
//
//	key := "lease." + hash.Hex("my namespace", "leader election")
func Hex(parts ...string) string {
	var h uint64
	for i, p := range parts {
		if i == 0 {
			h = xxh3.HashString(p)
			continue
		}
		h = xxh3.HashStringSeed("/"+p, h)
	}

	s := strconv.FormatUint(h, 16)
	for len(s) < 16 {
		s = "0" + s
	}

	return s
}
