package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRoot(t *testing.T) {
	root := t.TempDir()
	EnsureRoot(root)

	for _, dir := range []string{defaultConfigDir, defaultDataDir} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// idempotent
	EnsureRoot(root)
}

func TestWriteConfigFile(t *testing.T) {
	root := t.TempDir()
	EnsureRoot(root)

	cfg := DefaultConfig()
	cfg.Moniker = "bridge-test"
	cfg.Admins = []string{"admin-1", "admin-2"}
	require.NoError(t, WriteConfigFile(root, cfg))

	bz, err := os.ReadFile(filepath.Join(root, defaultConfigFilePath))
	require.NoError(t, err)
	contents := string(bz)

	assert.True(t, strings.Contains(contents, `moniker = "bridge-test"`))
	assert.True(t, strings.Contains(contents, `admins = ["admin-1", "admin-2"]`))
	assert.True(t, strings.Contains(contents, `required-validators = 3`))
	assert.True(t, strings.Contains(contents, `validation-window = "24h0m0s"`))
}

// The written file must parse back into an equivalent config via viper, the
// same path the node takes at startup.
func TestConfigFileRoundTrip(t *testing.T) {
	root := t.TempDir()
	EnsureRoot(root)

	cfg := DefaultConfig()
	cfg.Moniker = "round-trip"
	cfg.Admins = []string{"admin-1"}
	cfg.Ledger.RequiredValidators = 5
	cfg.Ledger.ValidationWindow = 12 * time.Hour
	cfg.Relay.RequiredConfirmations = 2
	cfg.Store.Backend = "memdb"
	require.NoError(t, WriteConfigFile(root, cfg))

	v := viper.New()
	v.SetConfigFile(filepath.Join(root, defaultConfigFilePath))
	require.NoError(t, v.ReadInConfig())

	loaded := DefaultConfig()
	require.NoError(t, v.Unmarshal(loaded))
	loaded.SetRoot(root)

	assert.Equal(t, "round-trip", loaded.Moniker)
	assert.Equal(t, []string{"admin-1"}, loaded.Admins)
	assert.Equal(t, 5, loaded.Ledger.RequiredValidators)
	assert.Equal(t, 12*time.Hour, loaded.Ledger.ValidationWindow)
	assert.Equal(t, 2, loaded.Relay.RequiredConfirmations)
	assert.Equal(t, "memdb", loaded.Store.Backend)
	require.NoError(t, loaded.ValidateBasic())
}
