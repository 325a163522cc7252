package config

import (
	"context"
	"errors"
	"fmt"

	vault "github.com/hashicorp/vault/api"
)

// VaultClient wraps HashiCorp Vault client
type VaultClient struct {
	client *vault.Client
	config *VaultConfig
}

// NewVaultClient creates a new Vault client. It returns nil when Vault is
// disabled.
func NewVaultClient(cfg *VaultConfig) (*VaultClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	token, err := cfg.GetVaultToken()
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	return &VaultClient{
		client: client,
		config: cfg,
	}, nil
}

// GetSecret reads a KV v2 secret below the configured mount.
func (vc *VaultClient) GetSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	if vc == nil {
		return nil, errors.New("vault client is not initialized")
	}

	mount := vc.config.Mount
	if mount == "" {
		mount = "secret"
	}
	secret, err := vc.client.KVv2(mount).Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found: %s", path)
	}

	return secret.Data, nil
}

// ApplyVaultSecrets replaces the storage access key with the one kept in
// Vault when Storage.AccessKeyVaultPath is set.
func ApplyVaultSecrets(ctx context.Context, cfg *Config, vaultClient *VaultClient) error {
	if vaultClient == nil {
		return nil
	}

	if cfg.Storage.AccessKeyVaultPath != "" {
		secret, err := vaultClient.GetSecret(ctx, cfg.Storage.AccessKeyVaultPath)
		if err != nil {
			return fmt.Errorf("failed to get storage access key: %w", err)
		}

		accessKey, ok := secret["access_key"].(string)
		if !ok || accessKey == "" {
			return fmt.Errorf("secret %s has no access_key", cfg.Storage.AccessKeyVaultPath)
		}
		cfg.Storage.AccessKey = accessKey
	}

	return nil
}
