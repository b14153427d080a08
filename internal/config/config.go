// Package config loads service configuration from the environment, with
// optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"soroban-dao/internal/contracts"
	"soroban-dao/internal/strkey"
	"soroban-dao/internal/wallet"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Wallet backends.
const (
	WalletBridge   = "bridge"
	WalletKeystore = "keystore"
)

// Config is the complete service configuration.
type Config struct {
	RPC       RPCConfig
	Contracts ContractsConfig
	Wallet    WalletConfig
	Storage   StorageConfig
	Server    ServerConfig

	// Local runs against an in-process chain with freshly deployed
	// contracts instead of a real RPC endpoint.
	Local bool
}

// RPCConfig holds Soroban RPC settings.
type RPCConfig struct {
	URL               string
	NetworkPassphrase string
	Timeout           time.Duration
	MaxRetries        int
	TxTimeout         time.Duration
	ConfirmTimeout    time.Duration
	PollInterval      time.Duration
	BaseFee           int64
}

// ContractsConfig holds the deployed contract IDs.
type ContractsConfig struct {
	Treasury      string
	Governance    string
	TokenVault    string
	AccessControl string
}

// Addresses converts the contract IDs for the contract clients.
func (c ContractsConfig) Addresses() contracts.Addresses {
	return contracts.Addresses{
		Treasury:      c.Treasury,
		Governance:    c.Governance,
		TokenVault:    c.TokenVault,
		AccessControl: c.AccessControl,
	}
}

// WalletConfig selects and configures the wallet backend.
type WalletConfig struct {
	Backend      string
	BridgeURL    string
	KeystorePath string

	// KeystorePassphrase unlocks the keystore at startup. Empty leaves it
	// locked until unlocked interactively.
	KeystorePassphrase string
}

// StorageConfig selects the journal and activity stores.
type StorageConfig struct {
	UseMemory     bool
	PostgresDSN   string
	ClickhouseDSN string
}

// ServerConfig holds HTTP server and background worker settings.
type ServerConfig struct {
	Addr              string
	EventPollInterval time.Duration
	EventStartLedger  uint32
	ReconcileInterval time.Duration
	OutputDir         string
}

// Load reads .env files (default ".env"; missing files are skipped),
// then builds and validates the configuration from the environment.
// Variables already set take precedence over file values.
func Load(files ...string) (*Config, error) {
	cfg, err := LoadEnv(files...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv is Load without validation, for commands that only touch the
// local keystore.
func LoadEnv(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a configuration from environment variables, applying
// defaults. It does not validate.
func FromEnv() (*Config, error) {
	var p parser
	cfg := &Config{
		RPC: RPCConfig{
			URL:               getEnvOrDefault("SOROBAN_RPC_URL", "https://soroban-testnet.stellar.org"),
			NetworkPassphrase: getEnvOrDefault("STELLAR_NETWORK_PASSPHRASE", wallet.TestnetPassphrase),
			Timeout:           p.duration("RPC_TIMEOUT", 30*time.Second),
			MaxRetries:        p.int("RPC_MAX_RETRIES", 3),
			TxTimeout:         p.duration("TX_TIMEOUT", 5*time.Minute),
			ConfirmTimeout:    p.duration("CONFIRM_TIMEOUT", 30*time.Second),
			PollInterval:      p.duration("CONFIRM_POLL_INTERVAL", time.Second),
			BaseFee:           int64(p.int("BASE_FEE", 100)),
		},
		Contracts: ContractsConfig{
			Treasury:      os.Getenv("TREASURY_CONTRACT_ID"),
			Governance:    os.Getenv("GOVERNANCE_CONTRACT_ID"),
			TokenVault:    os.Getenv("TOKEN_VAULT_CONTRACT_ID"),
			AccessControl: os.Getenv("ACCESS_CONTROL_CONTRACT_ID"),
		},
		Wallet: WalletConfig{
			Backend:            strings.ToLower(getEnvOrDefault("WALLET_BACKEND", WalletKeystore)),
			BridgeURL:          getEnvOrDefault("WALLET_BRIDGE_URL", "ws://127.0.0.1:8765"),
			KeystorePath:       getEnvOrDefault("KEYSTORE_PATH", "keystore.json"),
			KeystorePassphrase: os.Getenv("KEYSTORE_PASSPHRASE"),
		},
		Storage: StorageConfig{
			UseMemory:     p.bool("USE_MEMORY", false),
			PostgresDSN:   os.Getenv("POSTGRES_DSN"),
			ClickhouseDSN: os.Getenv("CLICKHOUSE_DSN"),
		},
		Server: ServerConfig{
			Addr:              getEnvOrDefault("HTTP_ADDR", ":8080"),
			EventPollInterval: p.duration("EVENT_POLL_INTERVAL", 5*time.Second),
			EventStartLedger:  uint32(p.int("EVENT_START_LEDGER", 0)),
			ReconcileInterval: p.duration("RECONCILE_INTERVAL", 15*time.Second),
			OutputDir:         getEnvOrDefault("OUTPUT_DIR", "output"),
		},
		Local: p.bool("LOCAL_CHAIN", false),
	}
	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// Validate checks required fields and formats.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if c.RPC.NetworkPassphrase == "" {
		fail("STELLAR_NETWORK_PASSPHRASE is required")
	}
	if !c.Local && c.RPC.URL == "" {
		fail("SOROBAN_RPC_URL is required")
	}
	for name, d := range map[string]time.Duration{
		"RPC_TIMEOUT":           c.RPC.Timeout,
		"TX_TIMEOUT":            c.RPC.TxTimeout,
		"CONFIRM_TIMEOUT":       c.RPC.ConfirmTimeout,
		"CONFIRM_POLL_INTERVAL": c.RPC.PollInterval,
		"EVENT_POLL_INTERVAL":   c.Server.EventPollInterval,
		"RECONCILE_INTERVAL":    c.Server.ReconcileInterval,
	} {
		if d <= 0 {
			fail("%s must be positive, got %s", name, d)
		}
	}
	if c.RPC.BaseFee <= 0 {
		fail("BASE_FEE must be positive, got %d", c.RPC.BaseFee)
	}

	ids := []struct {
		env, id  string
		required bool
	}{
		{"TREASURY_CONTRACT_ID", c.Contracts.Treasury, !c.Local},
		{"GOVERNANCE_CONTRACT_ID", c.Contracts.Governance, !c.Local},
		{"TOKEN_VAULT_CONTRACT_ID", c.Contracts.TokenVault, false},
		{"ACCESS_CONTROL_CONTRACT_ID", c.Contracts.AccessControl, false},
	}
	for _, id := range ids {
		switch {
		case id.id == "" && id.required:
			fail("%s is required", id.env)
		case id.id != "" && !strkey.IsValidContract(id.id):
			fail("%s is not a contract address: %q", id.env, id.id)
		}
	}

	switch c.Wallet.Backend {
	case WalletBridge:
		if c.Wallet.BridgeURL == "" {
			fail("WALLET_BRIDGE_URL is required for the bridge backend")
		}
	case WalletKeystore:
		if c.Wallet.KeystorePath == "" {
			fail("KEYSTORE_PATH is required for the keystore backend")
		}
	default:
		fail("WALLET_BACKEND must be %q or %q, got %q", WalletBridge, WalletKeystore, c.Wallet.Backend)
	}

	if c.Local && c.Wallet.Backend != WalletKeystore {
		fail("LOCAL_CHAIN requires the keystore wallet backend")
	}

	if !c.Storage.UseMemory && (c.Storage.PostgresDSN == "" || c.Storage.ClickhouseDSN == "") {
		fail("POSTGRES_DSN and CLICKHOUSE_DSN are required unless USE_MEMORY is set")
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parser reads typed variables, keeping the first parse error.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, value, err)
	}
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (p *parser) int(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (p *parser) bool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return b
}
