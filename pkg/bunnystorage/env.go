package bunnystorage

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/bunnystorage/storage_sdk_go/internal/devseed"
	"github.com/bunnystorage/storage_sdk_go/internal/memzone"
)

const (
	envPrefix = "BUNNY"

	modeAuto = "auto"
	modeHTTP = "http"
	modeMock = "mock"

	defaultMockZone = "mock-zone"
)

type envSettings struct {
	AccessKey   string `envconfig:"ACCESS_KEY"`
	StorageZone string `envconfig:"STORAGE_ZONE"`
	Region      string `envconfig:"REGION"`
	BaseURL     string `envconfig:"BASE_URL"`
	RuntimeMode string `envconfig:"RUNTIME_MODE" default:"auto"`
	MockSeed    string `envconfig:"MOCK_SEED"`
}

// NewFromEnv initialises a client from BUNNY_* environment variables and
// returns the resolved mode ("http" or "mock").
//
// BUNNY_RUNTIME_MODE selects the backend. "auto" (the default) uses HTTP when
// both BUNNY_ACCESS_KEY and BUNNY_STORAGE_ZONE are set and an in-memory zone
// otherwise. The in-memory zone is pre-populated from BUNNY_MOCK_SEED when
// set. BUNNY_REGION and BUNNY_BASE_URL shape the HTTP endpoint.
func NewFromEnv(opts ...Option) (*Client, string, error) {
	var env envSettings
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return nil, "", fmt.Errorf("bunnystorage: read environment: %w", err)
	}

	hasCreds := strings.TrimSpace(env.AccessKey) != "" && strings.TrimSpace(env.StorageZone) != ""
	mode := strings.ToLower(strings.TrimSpace(env.RuntimeMode))
	switch mode {
	case "", modeAuto:
		if hasCreds {
			return newHTTPClientFromEnv(env, opts)
		}
		return newMockClientFromEnv(env, opts)
	case modeHTTP:
		if !hasCreds {
			return nil, "", fmt.Errorf("bunnystorage: HTTP mode requires %s_ACCESS_KEY and %s_STORAGE_ZONE", envPrefix, envPrefix)
		}
		return newHTTPClientFromEnv(env, opts)
	case modeMock:
		return newMockClientFromEnv(env, opts)
	default:
		return nil, "", fmt.Errorf("bunnystorage: unsupported %s_RUNTIME_MODE value %q", envPrefix, mode)
	}
}

func newHTTPClientFromEnv(env envSettings, opts []Option) (*Client, string, error) {
	if env.BaseURL != "" {
		opts = append(opts, WithBaseURL(env.BaseURL))
	}
	client, err := New(Config{
		AccessKey:   env.AccessKey,
		StorageZone: env.StorageZone,
		Region:      env.Region,
	}, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("bunnystorage: init HTTP client: %w", err)
	}
	return client, modeHTTP, nil
}

func newMockClientFromEnv(env envSettings, opts []Option) (*Client, string, error) {
	name := strings.TrimSpace(env.StorageZone)
	if name == "" {
		name = defaultMockZone
	}
	zone := memzone.New(name)
	if path := strings.TrimSpace(env.MockSeed); path != "" {
		entries, err := devseed.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("bunnystorage: load mock seed: %w", err)
		}
		if err := zone.Seed(entries); err != nil {
			return nil, "", fmt.Errorf("bunnystorage: apply mock seed: %w", err)
		}
	}
	client, err := newClient(&memBackend{zone: zone}, buildOptions(opts))
	if err != nil {
		return nil, "", err
	}
	return client, modeMock, nil
}
