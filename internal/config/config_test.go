package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emrgen/plm/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.HTTP.Port)
	assert.Equal(t, ":8000", cfg.HTTPAddr())
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.True(t, cfg.States.Strict)
	assert.Equal(t, "fs", cfg.Storage.Driver)
	assert.Equal(t, "none", cfg.Storage.Compression)
	assert.Equal(t, "@every 30s", cfg.Jobs.Reload)
	assert.Equal(t, time.Hour, cfg.Jobs.SweepGrace)
	assert.Empty(t, cfg.KafkaBrokers())
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yaml := "http:\n  port: 9100\nstorage:\n  driver: memory\n  s3:\n    path_style: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plm.yaml"), []byte(yaml), 0o644))
	t.Setenv("PLM_STATES_STRICT", "false")
	t.Setenv("PLM_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PLM_JOBS_SWEEP_GRACE", "15m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.HTTP.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.True(t, cfg.Storage.S3.PathStyle)
	assert.False(t, cfg.States.Strict)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers())
	assert.Equal(t, 15*time.Minute, cfg.Jobs.SweepGrace)
}

func TestSqliteDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{name: "empty", dsn: "", want: "./plm.db?" + sqliteParams},
		{name: "path", dsn: "/tmp/a.db", want: "/tmp/a.db?" + sqliteParams},
		{name: "with params", dsn: "file::memory:?cache=shared", want: "file::memory:?cache=shared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SqliteDSN(tt.dsn))
		})
	}
}

func TestGetDb(t *testing.T) {
	cfg := &Config{DB: DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "plm.db")}}

	db, err := GetDb(cfg)
	require.NoError(t, err)
	require.NoError(t, model.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Close())

	_, err = GetDb(&Config{DB: DBConfig{Driver: "oracle"}})
	assert.Error(t, err)
}

func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
