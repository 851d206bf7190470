package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
season: S3
inputs:
  candidate_path: rewards.csv
  cluster_glob: "sybils/*.csv"
stats_api:
  endpoint: https://stats.example.com/prod/stats
  request_delay: 200ms
duplicate_policy: keep-higher
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "S3", cfg.Season)
	assert.Equal(t, "rewards.csv", cfg.Inputs.CandidatePath)
	assert.Equal(t, "sybils/*.csv", cfg.Inputs.ClusterGlob)
	assert.Equal(t, 200*time.Millisecond, cfg.StatsAPI.RequestDelay)
	assert.Equal(t, DefaultWorkers, cfg.StatsAPI.Workers)
	assert.Equal(t, DefaultTimeout, cfg.StatsAPI.Timeout)
	assert.Equal(t, DefaultClaimedPath, cfg.Inputs.ClaimedPath)
	assert.Equal(t, "keep-higher", cfg.DuplicatePolicy)
	assert.NoError(t, cfg.ValidateReconcile())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultSeason, cfg.Season)
	assert.Equal(t, "last-write-wins", cfg.DuplicatePolicy)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.ValidateReconcile())
	assert.Error(t, cfg.ValidateFetch())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "season: S2\nstats_api:\n  workers: 4\n")

	t.Setenv("AIRDROP_SEASON", "S9")
	t.Setenv("AIRDROP_WORKERS", "16")
	t.Setenv("AIRDROP_REQUEST_DELAY", "1s")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/airdrop")
	t.Setenv("POSTGRES_MAX_CONNS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "S9", cfg.Season)
	assert.Equal(t, 16, cfg.StatsAPI.Workers)
	assert.Equal(t, time.Second, cfg.StatsAPI.RequestDelay)
	assert.Equal(t, "postgres://localhost/airdrop", cfg.Database.PostgresDSN)
	assert.Equal(t, int32(8), cfg.Database.PostgresMaxConns)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("AIRDROP_WORKERS", "many")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "season: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.DuplicatePolicy = "newest"
	assert.Error(t, cfg.Validate())

	cfg.DuplicatePolicy = "reject-conflict"
	cfg.StatsAPI.Workers = -1
	assert.Error(t, cfg.Validate())

	cfg.StatsAPI.Workers = 2
	cfg.Database.PostgresMaxConns = -1
	assert.Error(t, cfg.Validate())

	cfg.Database.PostgresMaxConns = 0
	cfg.StatsAPI.Endpoint = "http://localhost"
	cfg.Inputs.AddressFile = "addresses.txt"
	assert.NoError(t, cfg.ValidateFetch())
}
