// Package config loads solpm settings from defaults, an optional config
// file and SOLPM_* environment variables.
//
// The resolved Config is handed to the engine explicitly; nothing below the
// CLI reads the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/solpm/internal/engine"
	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/registry"
)

const (
	// AppName is the application name and the config file base name.
	AppName = "solpm"
	// EnvPrefix prefixes every environment override, e.g. SOLPM_NETWORK.
	EnvPrefix = "SOLPM"

	DefaultManifestPath = "./SolanaPrograms.json"
	DefaultJournalPath  = ".solpm/journal.db"
)

// Config is the resolved solpm configuration.
type Config struct {
	Network      string        `mapstructure:"network"`
	RegistryURL  string        `mapstructure:"registry_url"`
	ManifestPath string        `mapstructure:"manifest_path"`
	IDLDir       string        `mapstructure:"idl_dir"`
	ClientDir    string        `mapstructure:"client_dir"`
	Parallelism  int           `mapstructure:"parallelism"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// JournalPath is the SQLite journal. Empty disables the journal.
	JournalPath string `mapstructure:"journal_path"`
	// ModulePath is the project's Go module path, used for import comments
	// in generated clients.
	ModulePath string `mapstructure:"module_path"`
}

// LoadOptions selects where configuration is read from.
type LoadOptions struct {
	// ConfigFile is an explicit config file. It must exist.
	ConfigFile string
	// Dir is searched for solpm.toml, solpm.yaml or solpm.json when no
	// ConfigFile is given. Empty means the working directory.
	Dir string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Network:      string(ir.Devnet),
		RegistryURL:  registry.DefaultBaseURL,
		ManifestPath: DefaultManifestPath,
		IDLDir:       engine.DefaultIDLDir,
		ClientDir:    engine.DefaultClientDir,
		Parallelism:  engine.DefaultParallelism,
		FetchTimeout: engine.DefaultFetchTimeout,
		JournalPath:  DefaultJournalPath,
	}
}

// Load resolves the configuration and returns it with the path of the
// config file that was read ("" when none).
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("network", defaults.Network)
	v.SetDefault("registry_url", defaults.RegistryURL)
	v.SetDefault("manifest_path", defaults.ManifestPath)
	v.SetDefault("idl_dir", defaults.IDLDir)
	v.SetDefault("client_dir", defaults.ClientDir)
	v.SetDefault("parallelism", defaults.Parallelism)
	v.SetDefault("fetch_timeout", defaults.FetchTimeout)
	v.SetDefault("journal_path", defaults.JournalPath)
	v.SetDefault("module_path", defaults.ModulePath)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true) // SOLPM_JOURNAL_PATH= disables the journal
	v.AutomaticEnv()

	resolved := ""
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, "", fmt.Errorf("config file %s: %w", opts.ConfigFile, err)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
		resolved = opts.ConfigFile
	} else {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(AppName)
		v.AddConfigPath(dir)
		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		switch {
		case err == nil:
			resolved = v.ConfigFileUsed()
		case errors.As(err, &notFound):
			// Defaults and environment only.
		default:
			return nil, "", fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		if resolved != "" {
			return nil, "", fmt.Errorf("%s: %w", resolved, err)
		}
		return nil, "", err
	}
	return &cfg, resolved, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ir.ParseNetwork(c.Network); err != nil {
		errs = append(errs, fmt.Errorf("network: %w", err))
	}
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism: must be at least 1, got %d", c.Parallelism))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout: must be positive, got %s", c.FetchTimeout))
	}
	if c.ManifestPath == "" {
		errs = append(errs, errors.New("manifest_path: must not be empty"))
	}
	return errors.Join(errs...)
}

// NetworkTag returns the configured network. Call Validate first.
func (c *Config) NetworkTag() ir.Network {
	n, _ := ir.ParseNetwork(c.Network)
	return n
}

// Engine converts the configuration for a project rooted at root.
func (c *Config) Engine(root string) engine.Config {
	return engine.Config{
		Network:      c.NetworkTag(),
		ProjectRoot:  root,
		IDLDir:       c.IDLDir,
		ClientDir:    c.ClientDir,
		Parallelism:  c.Parallelism,
		FetchTimeout: c.FetchTimeout,
		ModulePath:   c.ModulePath,
	}
}

// ManifestFile returns the manifest path resolved against root.
func (c *Config) ManifestFile(root string) string {
	return resolve(root, c.ManifestPath)
}

// JournalFile returns the journal path resolved against root, or "" when
// the journal is disabled.
func (c *Config) JournalFile(root string) string {
	if c.JournalPath == "" {
		return ""
	}
	return resolve(root, c.JournalPath)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.FromSlash(p))
}
