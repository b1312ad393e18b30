package strutils

import (
	"fmt"
	"strings"
	"unicode"
)

const validHexDigits = "0123456789abcdefABCDEF"

const strippedUUIDLength = 32

// NormalizeUUID converts uuid to its canonical dashed lowercase form.
// Dashes in the input are ignored wherever they appear.
func NormalizeUUID(uuid string) (string, error) {
	var stripped strings.Builder
	stripped.Grow(strippedUUIDLength)

	for _, char := range uuid {
		if char == '-' {
			continue
		}
		if !strings.ContainsRune(validHexDigits, char) {
			return "", fmt.Errorf("invalid character in UUID. input: '%s'", uuid)
		}
		stripped.WriteRune(unicode.ToLower(char))
	}
	if stripped.Len() != strippedUUIDLength {
		return "", fmt.Errorf("normalized UUID has incorrect length. input: '%s'", uuid)
	}

	s := stripped.String()
	return s[:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:], nil
}

// UUIDIsNormalized reports whether uuid is already in canonical form.
func UUIDIsNormalized(uuid string) bool {
	normalized, err := NormalizeUUID(uuid)
	if err != nil {
		return false
	}
	return uuid == normalized
}
