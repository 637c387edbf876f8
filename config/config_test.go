package config_test

import (
	"testing"
	"time"

	"etun"
	"etun/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "", cfg.Log.File.Path)
	assert.Equal(t, ":6885", cfg.Server.Listen)
	assert.Equal(t, "10.0.0.0/24", cfg.Server.Subnet)
	assert.Equal(t, 5*time.Second, cfg.Server.HandshakeTimeout)
	assert.Equal(t, "127.0.0.1:6885", cfg.Client.Server)
	assert.Empty(t, cfg.Catalog)

	table, err := cfg.Table()
	require.NoError(t, err)
	assert.Same(t, etun.DefaultTable(), table)
}

func TestLoadFile(t *testing.T) {
	cfg, err := config.Load("testdata/etun.yml")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 100, cfg.Log.File.MaxSizeMB)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Listen)
	assert.Equal(t, "192.168.50.0/24", cfg.Server.Subnet)
	assert.Equal(t, "tunnel.example.com:7000", cfg.Client.Server)
	assert.Equal(t, "tap7", cfg.Client.TapName)
	assert.Equal(t, []etun.CatalogEntry{
		{EtherType: 0x0800, CompactId: 1},
		{EtherType: 0x86DD, CompactId: 2},
		{EtherType: 0x0806, CompactId: 3},
		{EtherType: 0x88CC, CompactId: 10},
	}, cfg.Catalog)

	table, err := cfg.Table()
	require.NoError(t, err)

	id, err := table.CompactId(0x88CC)
	assert.NoError(t, err)
	assert.Equal(t, uint8(10), id)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("ETUN_SERVER_LISTEN", "0.0.0.0:9000")
	t.Setenv("ETUN_LOG_LEVEL", "trace")

	cfg, err := config.Load("testdata/etun.yml")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, "trace", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load("testdata/missing.yml")
	assert.Error(t, err)

	_, err = config.Load("testdata/invalid.yml")
	assert.ErrorContains(t, err, "invalid config")

	_, err = config.Load("testdata/badethertype.yml")
	assert.Error(t, err)
}

func TestLoadCatalogOutOfRange(t *testing.T) {
	for _, path := range []string{
		"testdata/overflowid.yml",
		"testdata/overflowethertype.yml",
		"testdata/negativeid.yml",
	} {
		t.Run(path, func(t *testing.T) {
			cfg, err := config.Load(path)
			assert.ErrorContains(t, err, "out of range")
			assert.Nil(t, cfg)
		})
	}
}

func TestDuplicateCatalog(t *testing.T) {
	cfg, err := config.Load("testdata/duplicate.yml")
	require.NoError(t, err)

	_, err = cfg.Table()
	assert.ErrorIs(t, err, etun.DuplicateCompactIdError)
}

func TestListenValidation(t *testing.T) {
	for _, tc := range []struct {
		listen string
		valid  bool
	}{
		{":6885", true},
		{"127.0.0.1:6885", true},
		{"localhost:0", true},
		{"[::1]:6885", true},
		{"6885", false},
		{"localhost:70000", false},
		{"bad host:1", false},
	} {
		err := config.Validate.Var(tc.listen, "listen")
		if tc.valid {
			assert.NoError(t, err, tc.listen)
		} else {
			assert.Error(t, err, tc.listen)
		}
	}
}
