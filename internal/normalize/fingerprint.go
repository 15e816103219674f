package normalize

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// descriptionTokens is how many leading whitespace-separated tokens of the
// description participate in the fingerprint. A coarse prefix keeps the key
// stable across boards that truncate or re-format the tail of a posting.
const descriptionTokens = 16

// fieldSeparator keeps "a b"+"c" distinct from "a"+"b c" in the digest.
const fieldSeparator = "\x1f"

// Fingerprint derives the deterministic identity key for a posting from its
// normalized title, company, location and a coarse token of the description.
// Matching is exact on the normalized fields; fuzzy equivalence is out of
// scope.
func Fingerprint(title, company, location, description string) string {
	parts := []string{
		normalizeField(title),
		normalizeField(company),
		normalizeField(location),
		descriptionPrefix(description),
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(parts, fieldSeparator)))
}

// normalizeField lowercases and collapses internal whitespace. Only used
// for fingerprinting; display fields keep their original casing.
func normalizeField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// descriptionPrefix returns the first descriptionTokens normalized tokens.
func descriptionPrefix(description string) string {
	tokens := strings.Fields(strings.ToLower(description))
	if len(tokens) > descriptionTokens {
		tokens = tokens[:descriptionTokens]
	}
	return strings.Join(tokens, " ")
}
