package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/meszmate/wsroster/internal/xmpp"
	"github.com/meszmate/wsroster/internal/xmpp/jid"
)

const appName = "wsroster"

// ErrAccountNotFound is returned when no configured account matches.
var ErrAccountNotFound = errors.New("account not found")

// Config represents the main application configuration
type Config struct {
	General GeneralConfig `toml:"general"`
	UI      UIConfig      `toml:"ui"`
	Logging LoggingConfig `toml:"logging"`
	Storage StorageConfig `toml:"storage"`
	Metrics MetricsConfig `toml:"metrics"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	DataDir     string `toml:"data_dir"`
	AutoConnect bool   `toml:"auto_connect"`
}

// UIConfig contains UI-related settings
type UIConfig struct {
	TimeFormat string `toml:"time_format"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level   string `toml:"level"`
	File    string `toml:"file"`
	Console bool   `toml:"console"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	// SavePresence persists the last presence seen per contact.
	SavePresence bool `toml:"save_presence"`

	// SaveSessions remembers the last bound resource per account.
	SaveSessions bool `toml:"save_sessions"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// Account represents an XMPP account configuration
type Account struct {
	JID                 string `toml:"jid"`
	Password            string `toml:"password"`
	ServiceURL          string `toml:"service_url"`
	Resource            string `toml:"resource,omitempty"`
	TimeoutMs           int    `toml:"timeout_ms,omitempty"`
	AutoReconnect       bool   `toml:"auto_reconnect"`
	ReconnectIntervalMs int    `toml:"reconnect_interval_ms,omitempty"`
}

// Validate checks the account can be used to connect.
func (a Account) Validate() error {
	if err := jid.Validate(a.JID); err != nil {
		return fmt.Errorf("invalid JID %q: %w", a.JID, err)
	}
	if a.ServiceURL == "" {
		return fmt.Errorf("account %s has no service_url", a.JID)
	}
	if a.TimeoutMs < 0 || a.ReconnectIntervalMs < 0 {
		return fmt.Errorf("account %s has a negative duration", a.JID)
	}
	return nil
}

// ConnectionConfig converts the account to a client configuration.
func (a Account) ConnectionConfig() xmpp.Config {
	return xmpp.Config{
		ServiceURL:        a.ServiceURL,
		JID:               a.JID,
		Password:          a.Password,
		Resource:          a.Resource,
		Timeout:           time.Duration(a.TimeoutMs) * time.Millisecond,
		AutoReconnect:     a.AutoReconnect,
		ReconnectInterval: time.Duration(a.ReconnectIntervalMs) * time.Millisecond,
	}
}

// AccountsConfig contains all account configurations
type AccountsConfig struct {
	Accounts []Account `toml:"accounts"`
}

// Find returns the account whose bare JID matches j. An empty j selects the
// first account.
func (c *AccountsConfig) Find(j string) (Account, error) {
	for _, a := range c.Accounts {
		if j == "" || jid.Equal(a.JID, j, false) {
			return a, nil
		}
	}
	if j == "" {
		return Account{}, fmt.Errorf("%w: no accounts configured", ErrAccountNotFound)
	}
	return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, j)
}

// Upsert adds a, replacing an account with the same bare JID.
func (c *AccountsConfig) Upsert(a Account) {
	for i := range c.Accounts {
		if jid.Equal(c.Accounts[i].JID, a.JID, false) {
			c.Accounts[i] = a
			return
		}
	}
	c.Accounts = append(c.Accounts, a)
}

// Paths holds the XDG-compliant paths for the application
type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
}

// ConfigFile is the path of config.toml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.toml")
}

// AccountsFile is the path of accounts.toml.
func (p *Paths) AccountsFile() string {
	return filepath.Join(p.ConfigDir, "accounts.toml")
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			AutoConnect: true,
		},
		UI: UIConfig{
			TimeFormat: "15:04",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			SavePresence: true,
			SaveSessions: true,
		},
	}
}

// GetPaths returns XDG-compliant paths for the application
func GetPaths() (*Paths, error) {
	configDir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return nil, err
	}
	dataDir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	if err != nil {
		return nil, err
	}
	cacheDir, err := xdgDir("XDG_CACHE_HOME", ".cache")
	if err != nil {
		return nil, err
	}

	return &Paths{
		ConfigDir: filepath.Join(configDir, appName),
		DataDir:   filepath.Join(dataDir, appName),
		CacheDir:  filepath.Join(cacheDir, appName),
	}, nil
}

func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, fallback), nil
}

// EnsureDirectories creates the necessary directories
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.ConfigDir, p.DataDir, p.CacheDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Load loads the configuration from the config file
func Load() (*Config, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}
	return LoadFile(paths.ConfigFile(), paths.DataDir)
}

// LoadFile loads the configuration at path. A missing file yields defaults.
// Relative data paths default to dataDir.
func LoadFile(path, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if cfg.General.DataDir == "" {
		cfg.General.DataDir = dataDir
	} else {
		cfg.General.DataDir = expandPath(cfg.General.DataDir)
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.General.DataDir, appName+".log")
	} else {
		cfg.Logging.File = expandPath(cfg.Logging.File)
	}

	return cfg, nil
}

// LoadAccounts loads account configurations
func LoadAccounts() (*AccountsConfig, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}
	return LoadAccountsFile(paths.AccountsFile())
}

// LoadAccountsFile loads accounts from path. A missing file yields no accounts.
func LoadAccountsFile(path string) (*AccountsConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &AccountsConfig{Accounts: []Account{}}, nil
	}

	var accounts AccountsConfig
	if _, err := toml.DecodeFile(path, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}

	for i := range accounts.Accounts {
		if accounts.Accounts[i].ReconnectIntervalMs == 0 {
			accounts.Accounts[i].ReconnectIntervalMs = int(xmpp.DefaultReconnectInterval / time.Millisecond)
		}
	}

	return &accounts, nil
}

// Save saves the configuration to the config file
func Save(cfg *Config) error {
	paths, err := GetPaths()
	if err != nil {
		return err
	}
	return writeTOML(paths.ConfigFile(), cfg, 0644)
}

// SaveAccounts saves account configurations
func SaveAccounts(accounts *AccountsConfig) error {
	paths, err := GetPaths()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}
	return SaveAccountsFile(paths.AccountsFile(), accounts)
}

// SaveAccountsFile writes accounts to path. The file holds passwords and is
// created owner-only.
func SaveAccountsFile(path string, accounts *AccountsConfig) error {
	return writeTOML(path, accounts, 0600)
}

func writeTOML(path string, v any, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
