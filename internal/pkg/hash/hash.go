package hash

// Hash produces and checks one-way digests of secrets.
type Hash interface {
	// Hash returns the encoded digest of plaintext.
	Hash(plaintext string) ([]byte, error)
	// Verify reports whether plaintext matches an encoded digest.
	Verify(hashed, plaintext string) bool
}
