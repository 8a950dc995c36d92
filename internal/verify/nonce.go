package verify

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	nonceAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	nonceLength   = 20
	noncePrefix   = "keygate"
)

// NewNonce returns a token made only of ASCII letters and digits so that
// third-party rendering of a post leaves it intact.
func NewNonce() (string, error) {
	buf := make([]byte, nonceLength)
	limit := big.NewInt(int64(len(nonceAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = nonceAlphabet[n.Int64()]
	}
	return noncePrefix + string(buf), nil
}
