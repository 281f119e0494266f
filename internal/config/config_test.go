package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VAULTAI_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, int64(10<<20), cfg.MaxFileSize)
	assert.Equal(t, 4*time.Second, cfg.VerifyDelay)
	assert.Equal(t, 3*time.Second, cfg.MintDelay)
	assert.Equal(t, 80, cfg.MinScore)
	assert.Equal(t, 99, cfg.MaxScore)
	assert.Len(t, cfg.SigningSecret, 32)
	assert.True(t, cfg.ScorerFraction)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VAULTAI_CONFIG", "")
	t.Setenv("VAULTAI_ADDRESS", ":9999")
	t.Setenv("VAULTAI_VERIFY_DELAY", "250ms")
	t.Setenv("VAULTAI_SIGNING_SECRET", "topsecret")
	t.Setenv("VAULTAI_WORKERS", "-3")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("VAULTAI_SCORER_FRACTION", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Address)
	assert.Equal(t, 250*time.Millisecond, cfg.VerifyDelay)
	assert.Equal(t, []byte("topsecret"), cfg.SigningSecret)
	assert.Equal(t, defaultWorkerCount, cfg.ProcessingPool)
	assert.True(t, cfg.S3UseSSL)
	assert.False(t, cfg.ScorerFraction)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultai.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
address: ":7000"
mint_delay: 1s
min_score: 70
signing_secret: from-file
evidence_bucket: custom
`), 0o600))
	t.Setenv("VAULTAI_CONFIG", path)
	t.Setenv("S3_EVIDENCE_BUCKET", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Address)
	assert.Equal(t, time.Second, cfg.MintDelay)
	assert.Equal(t, 70, cfg.MinScore)
	assert.Equal(t, []byte("from-file"), cfg.SigningSecret)
	assert.Equal(t, "from-env", cfg.EvidenceBucket)
	assert.Equal(t, 4*time.Second, cfg.VerifyDelay)
}

func TestLoadRejectsInvertedScoreRange(t *testing.T) {
	t.Setenv("VAULTAI_CONFIG", "")
	t.Setenv("VAULTAI_MIN_SCORE", "95")
	t.Setenv("VAULTAI_MAX_SCORE", "90")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("VAULTAI_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
