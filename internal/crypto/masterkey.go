package crypto

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/clients"
)

// MasterKeyProvider supplies the process-wide system master key (SMK).
// Implementations cache the key after the first successful load; there is no
// runtime rotation.
type MasterKeyProvider interface {
	MasterKey(ctx context.Context) ([]byte, error)
}

// EnvMasterKeyProvider reads the SMK from an environment variable, encoded as
// hex or base64. Intended for development and test environments.
type EnvMasterKeyProvider struct {
	envVar string

	once sync.Once
	key  []byte
	err  error
}

// NewEnvMasterKeyProvider creates a provider reading from the given env var
func NewEnvMasterKeyProvider(envVar string) *EnvMasterKeyProvider {
	return &EnvMasterKeyProvider{envVar: envVar}
}

// MasterKey returns the decoded 32-byte master key.
// The first successful load is cached for the process lifetime.
func (p *EnvMasterKeyProvider) MasterKey(ctx context.Context) ([]byte, error) {
	p.once.Do(func() {
		raw := os.Getenv(p.envVar)
		if raw == "" {
			p.err = fmt.Errorf("%w: %s is not set", ErrMasterKeyUnavailable, p.envVar)
			return
		}
		p.key, p.err = decodeKey(raw)
	})
	return p.key, p.err
}

// GCPMasterKeyProvider reads the SMK from GCP Secret Manager.
// The key is fetched once and held immutable for the process lifetime.
type GCPMasterKeyProvider struct {
	client   *clients.GCPSecretManagerClient
	secretID string

	mu  sync.Mutex
	key []byte
}

// NewGCPMasterKeyProvider creates a provider reading the named secret
func NewGCPMasterKeyProvider(client *clients.GCPSecretManagerClient, secretID string) *GCPMasterKeyProvider {
	return &GCPMasterKeyProvider{client: client, secretID: secretID}
}

// MasterKey returns the 32-byte master key, fetching it on first use.
// A fetch failure is not cached so a transient Secret Manager outage can
// recover on a later call.
func (p *GCPMasterKeyProvider) MasterKey(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil {
		return p.key, nil
	}

	payload, err := p.client.AccessLatestVersion(ctx, p.secretID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMasterKeyUnavailable, err)
	}

	key, err := decodeKey(string(payload))
	if err != nil {
		return nil, err
	}

	p.key = key
	return p.key, nil
}

// StaticMasterKeyProvider holds a fixed key. Test helper.
type StaticMasterKeyProvider struct {
	Key []byte
}

// MasterKey returns the fixed key
func (p *StaticMasterKeyProvider) MasterKey(ctx context.Context) ([]byte, error) {
	if len(p.Key) != KeySize {
		return nil, ErrMasterKeyUnavailable
	}
	return p.Key, nil
}

// decodeKey accepts a 32-byte key encoded as hex or base64
func decodeKey(raw string) ([]byte, error) {
	if key, err := hex.DecodeString(raw); err == nil && len(key) == KeySize {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(raw); err == nil && len(key) == KeySize {
		return key, nil
	}
	return nil, fmt.Errorf("%w: master key must be 32 bytes, hex or base64 encoded", ErrMasterKeyUnavailable)
}
