package crypto

import (
	"context"
	"fmt"
)

// KeyService generates and unwraps per-tenant data encryption keys (DEKs).
// The two-level hierarchy (SMK wraps the tenant DEK, the DEK wraps secret
// values) keeps an SMK compromise from exposing secret values directly and
// allows per-tenant DEK rotation without touching the SMK.
type KeyService struct {
	provider MasterKeyProvider
}

// NewKeyService creates a new key service backed by the given master key provider
func NewKeyService(provider MasterKeyProvider) *KeyService {
	return &KeyService{provider: provider}
}

// WrapNewTenantKey draws a fresh DEK and returns it wrapped under the current
// SMK, ready to persist on the tenant record. The plaintext DEK is discarded.
func (s *KeyService) WrapNewTenantKey(ctx context.Context) ([]byte, error) {
	smk, err := s.provider.MasterKey(ctx)
	if err != nil {
		return nil, err
	}

	dek, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tenant DEK: %w", err)
	}

	wrapped, err := Encrypt(dek, smk)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap tenant DEK: %w", err)
	}
	return wrapped, nil
}

// UnwrapTenantKey decrypts a wrapped tenant DEK under the current SMK.
// Returns ErrMasterKeyUnavailable when no SMK can be supplied and
// ErrAuthenticationFailed when the unwrap does not verify (SMK changed
// without a re-wrap, or corruption).
func (s *KeyService) UnwrapTenantKey(ctx context.Context, wrapped []byte) ([]byte, error) {
	smk, err := s.provider.MasterKey(ctx)
	if err != nil {
		return nil, err
	}
	return Decrypt(wrapped, smk)
}
