package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// HashString returns the hex md5 of input, used for cache keys.
func HashString(input string) string {
	sum := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", sum)
}

// QueryKey builds a stable cache key for a free-text query by
// collapsing whitespace and lowercasing before hashing.
func QueryKey(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	return HashString(normalized)
}
