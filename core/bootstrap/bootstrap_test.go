package bootstrap

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/bingobot/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	require.Error(t, err)
}

func TestRunOrder(t *testing.T) {
	var calls []string
	cfg := &coreconfig.Config{Database: coreconfig.DatabaseConfig{Driver: coreconfig.DriverSQLite, Path: ":memory:"}}
	res, err := Run(Options{
		Config: cfg,
		LoggerInit: func(*coreconfig.Config) error {
			calls = append(calls, "logger")
			return nil
		},
		Migrate: func(coreconfig.DatabaseConfig) error {
			calls = append(calls, "migrate")
			return nil
		},
		Connect: func(c coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			calls = append(calls, "connect")
			return sqlx.Open(c.Driver, c.Path)
		},
	})
	require.NoError(t, err)
	defer res.DB.Close()
	assert.Equal(t, []string{"logger", "migrate", "connect"}, calls)
}

func TestRunStopsOnMigrationError(t *testing.T) {
	connected := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Migrate:    func(coreconfig.DatabaseConfig) error { return errors.New("dirty") },
		Connect: func(coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations failed")
	assert.False(t, connected)
}

func TestRunWithSQLite(t *testing.T) {
	cfg := &coreconfig.Config{Database: coreconfig.DatabaseConfig{
		Driver:         coreconfig.DriverSQLite,
		Path:           filepath.Join(t.TempDir(), "boot.db"),
		MaxConnections: 1,
		MigrationsDir:  filepath.Join("..", "..", "migrations"),
	}}
	res, err := Run(Options{Config: cfg, LoggerInit: noLogger})
	require.NoError(t, err)
	defer res.DB.Close()

	var n int
	require.NoError(t, res.DB.Get(&n, "SELECT COUNT(*) FROM users"))
	assert.Zero(t, n)
}
