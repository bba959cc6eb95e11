package common

import (
	"crypto/rand"
	"encoding/base64"
)

// MakeRandTokenString generates a random URL-safe string from size random
// bytes. The resulting string is base64url-encoded without padding, so the
// final length is ceil(size*4/3).
//
// It returns an error if the random number generator fails.
func MakeRandTokenString(size int) (string, error) {
	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
