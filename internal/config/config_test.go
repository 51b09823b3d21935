package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SETTLED_CHAIN_CHAIN_ID", "1337")
	t.Setenv("SETTLED_CHAIN_EXCHANGE_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	t.Setenv("SETTLED_ACCESS_OWNER", "0x00000000000000000000000000000000000000A1")
	t.Setenv("SETTLED_ACCESS_OPERATOR", "0x00000000000000000000000000000000000000B2")
	t.Setenv("SETTLED_DATABASE_DRIVER", "sqlite")
	t.Setenv("SETTLED_DATABASE_DSN", ":memory:")
}

func TestLoadConfigFromEnv(t *testing.T) {
	setValidEnv(t)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, uint64(1337), cfg.Chain.ChainID)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", cfg.ExchangeAddress().Hex())
	assert.NotEqual(t, cfg.OwnerAddress(), cfg.OperatorAddress())
}

func TestLoadConfigRejectsBadAddress(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SETTLED_ACCESS_OWNER", "not-an-address")

	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SETTLED_DATABASE_DRIVER", "oracle")

	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}
