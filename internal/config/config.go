// Package config holds the daemon configuration and its resolution from
// flags, environment variables and an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stellar/go/network"

	"github.com/owlwallet/stellarkit/internal/syncer"
)

// Config is the full daemon configuration.
type Config struct {
	ConfigPath string

	Endpoint      string
	AdminEndpoint string

	HorizonURL        string
	NetworkPassphrase string
	Network           string

	WalletID   string
	AccountID  string
	SecretSeed string

	StorageDir   string
	SyncInterval time.Duration

	LogLevel  logrus.Level
	LogFormat string

	flagset      *pflag.FlagSet
	optionsCache []*Option
}

// options is memoized so the flag handles AddFlags stores survive into
// SetValues.
func (cfg *Config) options() []*Option {
	if cfg.optionsCache != nil {
		return cfg.optionsCache
	}
	cfg.optionsCache = []*Option{
		{
			Name:      "config-path",
			Usage:     "path to the TOML config file",
			ConfigKey: &cfg.ConfigPath,
		},
		{
			Name:         "endpoint",
			Usage:        "endpoint to listen and serve the JSON-RPC API on",
			ConfigKey:    &cfg.Endpoint,
			DefaultValue: "localhost:8000",
		},
		{
			Name:      "admin-endpoint",
			Usage:     "endpoint for the metrics and pprof admin server, disabled when empty",
			ConfigKey: &cfg.AdminEndpoint,
		},
		{
			Name:         "horizon-url",
			Usage:        "URL of the Horizon server the wallet syncs from",
			ConfigKey:    &cfg.HorizonURL,
			DefaultValue: "https://horizon-testnet.stellar.org",
		},
		{
			Name:         "network-passphrase",
			Usage:        "network passphrase used to sign outgoing transactions",
			ConfigKey:    &cfg.NetworkPassphrase,
			DefaultValue: network.TestNetworkPassphrase,
		},
		{
			Name:         "network",
			Usage:        "network label used in storage file names",
			ConfigKey:    &cfg.Network,
			DefaultValue: "testnet",
		},
		{
			Name:         "wallet-id",
			Usage:        "identifier of the wallet, used in storage file names",
			ConfigKey:    &cfg.WalletID,
			DefaultValue: "default",
		},
		{
			Name:      "account-id",
			Usage:     "account to sync when running watch-only",
			ConfigKey: &cfg.AccountID,
		},
		{
			Name:      "secret-seed",
			EnvVar:    "STELLAR_SECRET_SEED",
			Usage:     "secret seed of the signing account",
			ConfigKey: &cfg.SecretSeed,
		},
		{
			Name:         "storage-dir",
			Usage:        "directory the per-wallet sqlite files are stored in",
			ConfigKey:    &cfg.StorageDir,
			DefaultValue: ".",
		},
		{
			Name:         "sync-interval",
			Usage:        "interval between ledger sync attempts",
			ConfigKey:    &cfg.SyncInterval,
			DefaultValue: syncer.DefaultSyncInterval,
		},
		{
			Name:         "log-level",
			Usage:        "minimum log severity (debug, info, warn, error) to log",
			ConfigKey:    &cfg.LogLevel,
			DefaultValue: logrus.InfoLevel,
			CustomSetValue: func(option *Option, i interface{}) error {
				switch v := i.(type) {
				case nil:
					return nil
				case logrus.Level:
					cfg.LogLevel = v
				case string:
					level, err := logrus.ParseLevel(v)
					if err != nil {
						return fmt.Errorf("could not parse log-level: %q", v)
					}
					cfg.LogLevel = level
				default:
					return fmt.Errorf("could not parse log-level: %v", v)
				}
				return nil
			},
		},
		{
			Name:         "log-format",
			Usage:        "log format (text or json)",
			ConfigKey:    &cfg.LogFormat,
			DefaultValue: "text",
			Validate: func(option *Option) error {
				if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
					return fmt.Errorf("invalid log-format: %s", cfg.LogFormat)
				}
				return nil
			},
		},
	}
	return cfg.optionsCache
}

// AddFlags registers all options on the command so they render in --help.
func (cfg *Config) AddFlags(cmd *cobra.Command) error {
	cfg.flagset = cmd.PersistentFlags()
	for _, option := range cfg.options() {
		if err := option.AddFlag(cfg.flagset); err != nil {
			return err
		}
	}
	return nil
}

// SetValues resolves every option from flags, environment, the TOML file and
// defaults, in that order of precedence, then validates the result.
func (cfg *Config) SetValues() error {
	options := cfg.options()

	// config-path has to resolve first so the file can feed the rest.
	if err := options[0].resolve(cfg.flagset, nil); err != nil {
		return err
	}
	fileValues, err := cfg.loadConfigFile()
	if err != nil {
		return err
	}

	for _, option := range options[1:] {
		if err := option.resolve(cfg.flagset, fileValues); err != nil {
			return err
		}
	}
	return cfg.Validate()
}

func (cfg *Config) loadConfigFile() (map[string]interface{}, error) {
	if cfg.ConfigPath == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", cfg.ConfigPath, err)
	}
	tree, err := toml.LoadBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", cfg.ConfigPath, err)
	}
	return tree.ToMap(), nil
}

// Validate applies per-option validators and cross-option rules.
func (cfg *Config) Validate() error {
	for _, option := range cfg.options() {
		if option.Validate != nil {
			if err := option.Validate(option); err != nil {
				return err
			}
		}
	}
	if cfg.AccountID == "" && cfg.SecretSeed == "" {
		return errors.New("either account-id or secret-seed must be set")
	}
	if cfg.SyncInterval <= 0 {
		return errors.New("sync-interval must be positive")
	}
	return nil
}
