// Package config assembles keygate's runtime settings. Values are layered:
// built-in defaults, then the optional file named by KEYGATE_CONFIG, then
// KEYGATE_* environment variables, then command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/alphabot-ai/keygate/internal/rate"
	"github.com/alphabot-ai/keygate/internal/verify"
)

const (
	RateBackendMemory = "memory"
	RateBackendRedis  = "redis"
)

type Config struct {
	Addr        string
	DBPath      string
	AdminSecret string
	HashSecret  string
	NonceTTL    time.Duration
	RateBackend string
	Redis       Redis
	RateLimits  RateLimits
	PromoCodes  []string
	OEmbed      OEmbed
	Log         Log
}

type Redis struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RateLimits are fixed-window budgets per client. A budget of zero disables
// throttling for that action.
type RateLimits struct {
	Window           time.Duration
	ReissuePerWindow int
	NoncePerWindow   int
	VerifyPerWindow  int
}

type OEmbed struct {
	Endpoint string
	Timeout  time.Duration
}

type Log struct {
	Level  string
	Format string
}

func Default() Config {
	return Config{
		Addr:        ":8080",
		DBPath:      "keygate.db",
		AdminSecret: "dev-admin-secret",
		HashSecret:  "dev-hash-secret",
		NonceTTL:    30 * time.Minute,
		RateBackend: RateBackendMemory,
		Redis: Redis{
			Addr:   "localhost:6379",
			Prefix: "keygate:rl",
		},
		RateLimits: RateLimits{
			Window:           time.Hour,
			ReissuePerWindow: 5,
			NoncePerWindow:   10,
			VerifyPerWindow:  10,
		},
		OEmbed: OEmbed{
			Endpoint: verify.DefaultOEmbedEndpoint,
			Timeout:  verify.DefaultOEmbedTimeout,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load returns defaults overlaid with the KEYGATE_CONFIG file, if set, and
// the environment. Flags are applied separately via BindFlags.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("KEYGATE_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// fileConfig mirrors Config with durations spelled as strings ("90s", "1h")
// so YAML and JSON files share one shape.
type fileConfig struct {
	Addr        string   `yaml:"addr" json:"addr"`
	DBPath      string   `yaml:"db_path" json:"db_path"`
	AdminSecret string   `yaml:"admin_secret" json:"admin_secret"`
	HashSecret  string   `yaml:"hash_secret" json:"hash_secret"`
	NonceTTL    string   `yaml:"nonce_ttl" json:"nonce_ttl"`
	RateBackend string   `yaml:"rate_backend" json:"rate_backend"`
	PromoCodes  []string `yaml:"promo_codes" json:"promo_codes"`
	Redis       struct {
		Addr     string `yaml:"addr" json:"addr"`
		Password string `yaml:"password" json:"password"`
		DB       *int   `yaml:"db" json:"db"`
		Prefix   string `yaml:"prefix" json:"prefix"`
	} `yaml:"redis" json:"redis"`
	RateLimits struct {
		Window  string `yaml:"window" json:"window"`
		Reissue *int   `yaml:"reissue" json:"reissue"`
		Nonce   *int   `yaml:"nonce" json:"nonce"`
		Verify  *int   `yaml:"verify" json:"verify"`
	} `yaml:"rate_limits" json:"rate_limits"`
	OEmbed struct {
		Endpoint string `yaml:"endpoint" json:"endpoint"`
		Timeout  string `yaml:"timeout" json:"timeout"`
	} `yaml:"oembed" json:"oembed"`
	Log struct {
		Level  string `yaml:"level" json:"level"`
		Format string `yaml:"format" json:"format"`
	} `yaml:"log" json:"log"`
}

// LoadFile merges a YAML (.yaml, .yml) or JSONC (.json, .jsonc) file into
// cfg. Fields absent from the file keep their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &fc)
	default:
		return fmt.Errorf("config %s: unsupported extension %q", path, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := c.merge(fc); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func (c *Config) merge(fc fileConfig) error {
	setString(&c.Addr, fc.Addr)
	setString(&c.DBPath, fc.DBPath)
	setString(&c.AdminSecret, fc.AdminSecret)
	setString(&c.HashSecret, fc.HashSecret)
	setString(&c.RateBackend, fc.RateBackend)
	setString(&c.Redis.Addr, fc.Redis.Addr)
	setString(&c.Redis.Password, fc.Redis.Password)
	setString(&c.Redis.Prefix, fc.Redis.Prefix)
	setString(&c.OEmbed.Endpoint, fc.OEmbed.Endpoint)
	setString(&c.Log.Level, fc.Log.Level)
	setString(&c.Log.Format, fc.Log.Format)
	setInt(&c.Redis.DB, fc.Redis.DB)
	setInt(&c.RateLimits.ReissuePerWindow, fc.RateLimits.Reissue)
	setInt(&c.RateLimits.NoncePerWindow, fc.RateLimits.Nonce)
	setInt(&c.RateLimits.VerifyPerWindow, fc.RateLimits.Verify)
	if fc.PromoCodes != nil {
		c.PromoCodes = fc.PromoCodes
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"nonce_ttl", fc.NonceTTL, &c.NonceTTL},
		{"rate_limits.window", fc.RateLimits.Window, &c.RateLimits.Window},
		{"oembed.timeout", fc.OEmbed.Timeout, &c.OEmbed.Timeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("KEYGATE_ADDR"); addr != "" {
		c.Addr = addr
	} else if port := os.Getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	c.DBPath = envString("KEYGATE_DB", c.DBPath)
	c.AdminSecret = envString("KEYGATE_ADMIN_SECRET", c.AdminSecret)
	c.HashSecret = envString("KEYGATE_HASH_SECRET", c.HashSecret)
	c.NonceTTL = envDuration("KEYGATE_NONCE_TTL", c.NonceTTL)
	c.RateBackend = envString("KEYGATE_RATE_BACKEND", c.RateBackend)

	c.Redis.Addr = envString("KEYGATE_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envString("KEYGATE_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envInt("KEYGATE_REDIS_DB", c.Redis.DB)
	c.Redis.Prefix = envString("KEYGATE_REDIS_PREFIX", c.Redis.Prefix)

	c.RateLimits.Window = envDuration("KEYGATE_RL_WINDOW", c.RateLimits.Window)
	c.RateLimits.ReissuePerWindow = envInt("KEYGATE_RL_REISSUE", c.RateLimits.ReissuePerWindow)
	c.RateLimits.NoncePerWindow = envInt("KEYGATE_RL_NONCE", c.RateLimits.NoncePerWindow)
	c.RateLimits.VerifyPerWindow = envInt("KEYGATE_RL_VERIFY", c.RateLimits.VerifyPerWindow)

	if codes := verify.SplitCodes(os.Getenv("KEYGATE_PROMO_CODES"), os.Getenv("KEYGATE_PROMO_CODE")); len(codes) > 0 {
		c.PromoCodes = codes
	}

	c.OEmbed.Endpoint = envString("KEYGATE_OEMBED_ENDPOINT", c.OEmbed.Endpoint)
	c.OEmbed.Timeout = envDuration("KEYGATE_OEMBED_TIMEOUT", c.OEmbed.Timeout)
	c.Log.Level = envString("KEYGATE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envString("KEYGATE_LOG_FORMAT", c.Log.Format)
}

// BindFlags registers server flags on fs, defaulting to the values already
// in c. Parsing fs writes straight into c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "sqlite database path")
	fs.DurationVar(&c.NonceTTL, "nonce-ttl", c.NonceTTL, "lifetime of verification nonces")
	fs.StringVar(&c.RateBackend, "rate-backend", c.RateBackend, "rate counter store: memory or redis")
	fs.StringVar(&c.Redis.Addr, "redis-addr", c.Redis.Addr, "redis address for the redis rate backend")
	fs.IntVar(&c.Redis.DB, "redis-db", c.Redis.DB, "redis database number")
	fs.DurationVar(&c.RateLimits.Window, "rl-window", c.RateLimits.Window, "rate limit window")
	fs.IntVar(&c.RateLimits.ReissuePerWindow, "rl-reissue", c.RateLimits.ReissuePerWindow, "key reissues per client per window")
	fs.IntVar(&c.RateLimits.NoncePerWindow, "rl-nonce", c.RateLimits.NoncePerWindow, "nonce requests per client per window")
	fs.IntVar(&c.RateLimits.VerifyPerWindow, "rl-verify", c.RateLimits.VerifyPerWindow, "verification attempts per client per window")
	fs.StringSliceVar(&c.PromoCodes, "promo-code", c.PromoCodes, "valid promo code (repeatable or comma-separated)")
	fs.StringVar(&c.OEmbed.Endpoint, "oembed-endpoint", c.OEmbed.Endpoint, "oEmbed endpoint used for post verification")
	fs.DurationVar(&c.OEmbed.Timeout, "oembed-timeout", c.OEmbed.Timeout, "oEmbed request timeout")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level: debug, info, warn, error")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "log format: text or json")
}

// RatePolicies maps each throttled action to its budget. Both verify
// actions share VerifyPerWindow but count separately.
func (c Config) RatePolicies() map[string]rate.Policy {
	window := c.RateLimits.Window
	return map[string]rate.Policy{
		rate.ActionReissue:     {Limit: c.RateLimits.ReissuePerWindow, Window: window},
		rate.ActionNonce:       {Limit: c.RateLimits.NoncePerWindow, Window: window},
		rate.ActionVerifyPromo: {Limit: c.RateLimits.VerifyPerWindow, Window: window},
		rate.ActionVerifyTweet: {Limit: c.RateLimits.VerifyPerWindow, Window: window},
	}
}

func (c Config) Validate() error {
	switch c.RateBackend {
	case RateBackendMemory, RateBackendRedis:
	default:
		return fmt.Errorf("unknown rate backend %q", c.RateBackend)
	}
	if c.RateLimits.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.NonceTTL <= 0 {
		return fmt.Errorf("nonce ttl must be positive")
	}
	if strings.TrimSpace(c.HashSecret) == "" {
		return fmt.Errorf("hash secret required")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
