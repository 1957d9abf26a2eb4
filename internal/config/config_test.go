package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFile(filepath.Join(dir, "missing.toml"), dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.General.DataDir)
	assert.Equal(t, filepath.Join(dir, "wsroster.log"), cfg.Logging.File)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Storage.SaveSessions)
	assert.Empty(t, cfg.Metrics.ListenAddr)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[general]
data_dir = "`+filepath.ToSlash(filepath.Join(dir, "data"))+`"
auto_connect = false

[logging]
level = "debug"
console = true

[storage]
save_presence = false

[metrics]
listen_addr = "127.0.0.1:9464"

[ui]
time_format = "15:04:05"
`), 0600))

	cfg, err := LoadFile(path, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.General.DataDir)
	assert.False(t, cfg.General.AutoConnect)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Console)
	assert.Equal(t, filepath.Join(dir, "data", "wsroster.log"), cfg.Logging.File)
	assert.False(t, cfg.Storage.SavePresence)
	assert.True(t, cfg.Storage.SaveSessions)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.ListenAddr)
	assert.Equal(t, "15:04:05", cfg.UI.TimeFormat)
}

func TestLoadFileInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[general\n"), 0600))

	_, err := LoadFile(path, dir)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestAccountsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.toml")

	accounts := &AccountsConfig{}
	accounts.Upsert(Account{
		JID:           "alice@example.com",
		Password:      "secret",
		ServiceURL:    "https://chat.example.com",
		TimeoutMs:     10000,
		AutoReconnect: true,
	})
	accounts.Upsert(Account{JID: "bob@example.com", ServiceURL: "wss://example.com/ws"})
	accounts.Upsert(Account{JID: "alice@example.com/desk", Password: "changed", ServiceURL: "https://chat.example.com"})
	require.Len(t, accounts.Accounts, 2)

	require.NoError(t, SaveAccountsFile(path, accounts))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadAccountsFile(path)
	require.NoError(t, err)
	require.Len(t, loaded.Accounts, 2)

	alice, err := loaded.Find("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "changed", alice.Password)
	assert.Equal(t, 5000, alice.ReconnectIntervalMs)

	first, err := loaded.Find("")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com/desk", first.JID)

	_, err = loaded.Find("carol@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestLoadAccountsFileMissing(t *testing.T) {
	accounts, err := LoadAccountsFile(filepath.Join(t.TempDir(), "accounts.toml"))
	require.NoError(t, err)
	assert.Empty(t, accounts.Accounts)

	_, err = accounts.Find("")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountConnectionConfig(t *testing.T) {
	a := Account{
		JID:                 "alice@example.com",
		Password:            "secret",
		ServiceURL:          "https://chat.example.com",
		Resource:            "desk",
		TimeoutMs:           1500,
		AutoReconnect:       true,
		ReconnectIntervalMs: 250,
	}
	require.NoError(t, a.Validate())

	cfg := a.ConnectionConfig()
	assert.Equal(t, "https://chat.example.com", cfg.ServiceURL)
	assert.Equal(t, "desk", cfg.Resource)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectInterval)
	assert.True(t, cfg.AutoReconnect)
	assert.NoError(t, cfg.Validate())
}

func TestAccountValidate(t *testing.T) {
	assert.Error(t, Account{JID: "", ServiceURL: "https://example.com"}.Validate())
	assert.Error(t, Account{JID: "alice@example.com"}.Validate())
	assert.Error(t, Account{JID: "alice@example.com", ServiceURL: "x", TimeoutMs: -1}.Validate())
}

func TestGetPathsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))

	paths, err := GetPaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config", "wsroster"), paths.ConfigDir)
	assert.Equal(t, filepath.Join(dir, "config", "wsroster", "accounts.toml"), paths.AccountsFile())

	require.NoError(t, SaveAccounts(&AccountsConfig{Accounts: []Account{{JID: "alice@example.com", ServiceURL: "https://example.com"}}}))
	loaded, err := LoadAccounts()
	require.NoError(t, err)
	require.Len(t, loaded.Accounts, 1)
}
