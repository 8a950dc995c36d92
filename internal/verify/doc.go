// Package verify holds the stateless identity checks that make an account
// eligible: membership of a promo code in a configured set, and possession
// of a public social post that embeds a server-issued nonce.
//
// Neither check persists anything; recording the outcome is up to the
// caller.
package verify
