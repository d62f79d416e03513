package mfa

// Encryptor seals and opens small secrets bound to a Scope.
type Encryptor interface {
	Encrypt(plaintext []byte, scope Scope) (ciphertext []byte, err error)
	Decrypt(ciphertext []byte, scope Scope) (plaintext []byte, err error)
}

// KeyProvider resolves the AES-256 key for a scope.
type KeyProvider interface {
	Key(scope Scope) ([]byte, error)
}
