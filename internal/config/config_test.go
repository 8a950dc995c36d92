package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/keygate/internal/rate"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if key == "PORT" || strings.HasPrefix(key, "KEYGATE_") {
			t.Setenv(key, "")
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.PromoCodes)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEYGATE_ADDR", ":9999")
	t.Setenv("KEYGATE_NONCE_TTL", "10m")
	t.Setenv("KEYGATE_RL_REISSUE", "1")
	t.Setenv("KEYGATE_RATE_BACKEND", "redis")
	t.Setenv("KEYGATE_PROMO_CODES", "FOO, bar")
	t.Setenv("KEYGATE_PROMO_CODE", "ignored")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 10*time.Minute, cfg.NonceTTL)
	assert.Equal(t, 1, cfg.RateLimits.ReissuePerWindow)
	assert.Equal(t, RateBackendRedis, cfg.RateBackend)
	assert.Equal(t, []string{"FOO", "bar"}, cfg.PromoCodes)
}

func TestLoadSinglePromoFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEYGATE_PROMO_CODE", " launch ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"launch"}, cfg.PromoCodes)
}

func TestLoadPortFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Addr)
}

func TestLoadInvalidEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEYGATE_RL_NONCE", "lots")
	t.Setenv("KEYGATE_NONCE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().RateLimits.NoncePerWindow, cfg.RateLimits.NoncePerWindow)
	assert.Equal(t, Default().NonceTTL, cfg.NonceTTL)
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "keygate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7000"
nonce_ttl: 45m
promo_codes: [alpha, beta]
redis:
  addr: redis:6379
  db: 2
rate_limits:
  window: 1m
  reissue: 0
log:
  format: json
`), 0o600))
	t.Setenv("KEYGATE_CONFIG", path)
	t.Setenv("KEYGATE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 45*time.Minute, cfg.NonceTTL)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.PromoCodes)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.Minute, cfg.RateLimits.Window)
	assert.Equal(t, 0, cfg.RateLimits.ReissuePerWindow)
	assert.Equal(t, Default().RateLimits.NoncePerWindow, cfg.RateLimits.NoncePerWindow)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level, "env overrides file")
}

func TestLoadJSONCFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "keygate.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{
	// local development
	"db_path": "dev.db",
	"oembed": {"endpoint": "http://localhost:9000/oembed", "timeout": "2s"},
	"rate_limits": {"verify": 3,},
}`), 0o600))
	t.Setenv("KEYGATE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev.db", cfg.DBPath)
	assert.Equal(t, "http://localhost:9000/oembed", cfg.OEmbed.Endpoint)
	assert.Equal(t, 2*time.Second, cfg.OEmbed.Timeout)
	assert.Equal(t, 3, cfg.RateLimits.VerifyPerWindow)
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	badDuration := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badDuration, []byte("nonce_ttl: forever\n"), 0o600))
	t.Setenv("KEYGATE_CONFIG", badDuration)
	_, err := Load()
	assert.Error(t, err)

	unknown := filepath.Join(dir, "keygate.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("addr = ':1'\n"), 0o600))
	t.Setenv("KEYGATE_CONFIG", unknown)
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("KEYGATE_CONFIG", filepath.Join(dir, "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEYGATE_RATE_BACKEND", "memcached")
	_, err := Load()
	assert.Error(t, err)
}

func TestBindFlagsOverrides(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{"--addr", ":1234", "--rl-reissue", "2", "--promo-code", "a,b", "--nonce-ttl", "5m"}))
	assert.Equal(t, ":1234", cfg.Addr)
	assert.Equal(t, 2, cfg.RateLimits.ReissuePerWindow)
	assert.Equal(t, []string{"a", "b"}, cfg.PromoCodes)
	assert.Equal(t, 5*time.Minute, cfg.NonceTTL)
	assert.Equal(t, Default().DBPath, cfg.DBPath)
}

func TestRatePolicies(t *testing.T) {
	cfg := Default()
	cfg.RateLimits = RateLimits{Window: time.Minute, ReissuePerWindow: 1, NoncePerWindow: 2, VerifyPerWindow: 3}

	policies := cfg.RatePolicies()
	assert.Len(t, policies, 4)
	assert.Equal(t, rate.Policy{Limit: 1, Window: time.Minute}, policies[rate.ActionReissue])
	assert.Equal(t, rate.Policy{Limit: 2, Window: time.Minute}, policies[rate.ActionNonce])
	assert.Equal(t, 3, policies[rate.ActionVerifyPromo].Limit)
	assert.Equal(t, 3, policies[rate.ActionVerifyTweet].Limit)
}
