// Package util holds small generic helpers shared across the service that
// don't belong to any single domain package.
package util

import "crypto/rand"

// RandomBytes generates a random byte slice of length n.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}
