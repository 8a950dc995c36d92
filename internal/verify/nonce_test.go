package verify

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNonceIsAlphanumeric(t *testing.T) {
	pattern := regexp.MustCompile(`^keygate[A-Za-z0-9]{20}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n, err := NewNonce()
		require.NoError(t, err)
		assert.Regexp(t, pattern, n)
		assert.False(t, seen[n], "duplicate nonce %q", n)
		seen[n] = true
	}
}
