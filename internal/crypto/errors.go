package crypto

import "errors"

var (
	// ErrAuthenticationFailed means a GCM tag did not verify: the blob was
	// tampered with or decrypted under the wrong key. Callers must never
	// translate this into a not-found condition.
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")

	// ErrMalformedCiphertext means the blob is too short to contain a nonce
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrMasterKeyUnavailable means the master key provider cannot supply
	// the system master key
	ErrMasterKeyUnavailable = errors.New("master key unavailable")

	// ErrInvalidKeySize means a key is not the expected 32 bytes
	ErrInvalidKeySize = errors.New("invalid key size")
)
