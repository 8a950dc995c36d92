// Package httpapp provides the HTTP server for keygate.
//
//	@title						keygate API
//	@version					1.0
//	@description				Bearer API key issuance gated by possession proofs and rate limits.
//	@description
//	@description				## Getting a key
//	@description
//	@description				Accounts are provisioned by an operator. Once your email is registered,
//	@description				reissue a key at any time; the previous key stops working immediately.
//	@description				```bash
//	@description				curl -X POST /api/keys/reissue -d '{"email":"bot@example.com"}'
//	@description				# Returns: {"api_key": "kg_...", "key_prefix": "kg_...", "issued_at": "..."}
//	@description				```
//	@description				The key is shown once. Store it; the server keeps only a hash.
//	@description
//	@description				## Verifying an account
//	@description
//	@description				Either redeem a promo code:
//	@description				```bash
//	@description				curl -X POST /api/verify/promo -d '{"email":"bot@example.com","code":"LAUNCH"}'
//	@description				```
//	@description				or request a nonce, post it in a public tweet, and submit the tweet URL:
//	@description				```bash
//	@description				curl -X POST /api/verify/nonce -d '{"email":"bot@example.com"}'
//	@description				curl -X POST /api/verify/tweet -d '{"email":"bot@example.com","tweet_url":"https://x.com/..."}'
//	@description				```
//	@description
//	@description				## Rate limits
//	@description				Reissue and verification endpoints are throttled per client. A throttled
//	@description				request gets 429 with a Retry-After header and a human readable message.
//
//	@contact.name				keygate
//	@license.name				MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				API key from /api/keys/reissue, sent as "Bearer kg_..."
//
//	@tag.name					Keys
//	@tag.description			Issue and inspect bearer API keys.
//
//	@tag.name					Verification
//	@tag.description			Prove control of an identity with a promo code or a tweet.
//
//	@tag.name					Admin
//	@tag.description			Account provisioning. Requires X-Admin-Secret header.
//
//	@tag.name					Stats
//	@tag.description			Service counters.
package httpapp
