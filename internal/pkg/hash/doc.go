// Package hash provides one-way hashing for secrets the service must verify
// but never read back: account passwords (bcrypt), recovery codes (Argon2id)
// and lookup keys for revoked tokens (HMAC-SHA256).
package hash
