// Package apikey generates bearer API keys and derives their stored form.
//
// A key is "kg_" followed by 32 random bytes in unpadded base64url. Only the
// lookup prefix (the first eight characters after "kg_") and a keyed
// SHA3-256 digest of the whole key are ever persisted.
package apikey

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	Scheme       = "kg_"
	secretBytes  = 32
	lookupLength = 8
)

var encodedLength = len(Scheme) + base64.RawURLEncoding.EncodedLen(secretBytes)

// Credential is a freshly generated key. Secret must be handed to the caller
// once and then dropped; Prefix and Hash are what gets stored.
type Credential struct {
	Secret string
	Prefix string
	Hash   string
}

type Generator struct {
	pepper []byte
	random io.Reader
}

// NewGenerator returns a Generator whose digests are keyed with pepper. The
// same pepper must be used to verify keys later.
func NewGenerator(pepper string) *Generator {
	return &Generator{pepper: []byte(pepper), random: rand.Reader}
}

func (g *Generator) Generate() (Credential, error) {
	buf := make([]byte, secretBytes)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return Credential{}, fmt.Errorf("read random: %w", err)
	}
	secret := Scheme + base64.RawURLEncoding.EncodeToString(buf)
	prefix, _ := LookupPrefix(secret)
	return Credential{
		Secret: secret,
		Prefix: prefix,
		Hash:   g.Hash(secret),
	}, nil
}

// Hash returns the hex HMAC-SHA3-256 of secret under the generator's pepper.
func (g *Generator) Hash(secret string) string {
	mac := hmac.New(sha3.New256, g.pepper)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches reports whether secret hashes to stored, in constant time.
func (g *Generator) Matches(secret, stored string) bool {
	want, err := hex.DecodeString(stored)
	if err != nil {
		return false
	}
	mac := hmac.New(sha3.New256, g.pepper)
	mac.Write([]byte(secret))
	return hmac.Equal(mac.Sum(nil), want)
}

// LookupPrefix returns the non-secret index for a well-formed key.
func LookupPrefix(secret string) (string, bool) {
	if len(secret) != encodedLength || !strings.HasPrefix(secret, Scheme) {
		return "", false
	}
	return secret[:len(Scheme)+lookupLength], true
}
