// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Plans     PlansConfig     `koanf:"plans"`
	Economy   EconomyConfig   `koanf:"economy"`
	Progress  ProgressConfig  `koanf:"progress"`
	Content   ContentConfig   `koanf:"content"`
	Audit     AuditConfig     `koanf:"audit"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DrainDelay      time.Duration `koanf:"drain_delay"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
	KeyPrefix    string `koanf:"key_prefix"`
}

// JWTConfig only needs the public key to serve requests. The private key
// is read by cmd/devtoken.
type JWTConfig struct {
	PrivateKeyPath    string        `koanf:"private_key_path"`
	PublicKeyPath     string        `koanf:"public_key_path"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests      int           `koanf:"requests"`
	Window        time.Duration `koanf:"window"`
	Burst         int           `koanf:"burst"`
	SpendRequests int           `koanf:"spend_requests"`
	SpendWindow   time.Duration `koanf:"spend_window"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// PlansConfig bounds the weeks each paid tier unlocks. PRO is unlimited.
type PlansConfig struct {
	FreeMaxWeek  int `koanf:"free_max_week"`
	BasicMaxWeek int `koanf:"basic_max_week"`
}

type EconomyConfig struct {
	HintBaseCost         int64 `koanf:"hint_base_cost"`
	SolutionCost         int64 `koanf:"solution_cost"`
	SolutionRepeatCharge bool  `koanf:"solution_repeat_charge"`
	PassReward           int64 `koanf:"pass_reward"`
	XPBoostPercent       int64 `koanf:"xp_boost_percent"`
}

type ProgressConfig struct {
	LevelThresholds []int64 `koanf:"level_thresholds"`
	StreakTimezone  string  `koanf:"streak_timezone"`
}

type ContentConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

type AuditConfig struct {
	Enabled    bool   `koanf:"enabled"`
	AMQPURL    string `koanf:"amqp_url"`
	Exchange   string `koanf:"exchange"`
	RoutingKey string `koanf:"routing_key"`
	BufferSize int    `koanf:"buffer_size"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "coursegate",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.drain_delay":      "5s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,
		"redis.key_prefix":     "cg:",

		"jwt.access_token_expire": "15m",
		"jwt.issuer":              "coursegate",
		"jwt.audience":            "coursegate-api",
		"jwt.private_key_path":    "keys/private.pem",
		"jwt.public_key_path":     "keys/public.pem",

		"rate_limit.requests":       100,
		"rate_limit.window":         "1m",
		"rate_limit.burst":          20,
		"rate_limit.spend_requests": 30,
		"rate_limit.spend_window":   "1m",

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "coursegate",

		"plans.free_max_week":  1,
		"plans.basic_max_week": 5,

		"economy.hint_base_cost":         10,
		"economy.solution_cost":          50,
		"economy.solution_repeat_charge": true,
		"economy.pass_reward":            20,
		"economy.xp_boost_percent":       50,

		"progress.level_thresholds": []int64{
			0, 100, 250, 450, 700, 1000, 1400, 1900, 2500, 3200,
		},
		"progress.streak_timezone": "UTC",

		"content.cache_ttl": "10m",

		"audit.enabled":     false,
		"audit.exchange":    "coursegate.audit",
		"audit.routing_key": "audit.event",
		"audit.buffer_size": 256,
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"REDIS_KEY_PREFIX":            "redis.key_prefix",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"RATE_LIMIT_SPEND_REQUESTS":   "rate_limit.spend_requests",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"PLANS_FREE_MAX_WEEK":         "plans.free_max_week",
	"PLANS_BASIC_MAX_WEEK":        "plans.basic_max_week",
	"ECONOMY_HINT_BASE_COST":      "economy.hint_base_cost",
	"ECONOMY_SOLUTION_COST":       "economy.solution_cost",
	"ECONOMY_SOLUTION_REPEAT":     "economy.solution_repeat_charge",
	"ECONOMY_PASS_REWARD":         "economy.pass_reward",
	"STREAK_TIMEZONE":             "progress.streak_timezone",
	"CONTENT_CACHE_TTL":           "content.cache_ttl",
	"AUDIT_ENABLED":               "audit.enabled",
	"AUDIT_AMQP_URL":              "audit.amqp_url",
	"AMQP_URL":                    "audit.amqp_url",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

// validate reports every problem at once so a bad deploy shows the whole
// list in one log line.
func validate(c *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Database.URL == "" {
		fail("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		fail("REDIS_URL is required")
	}
	if c.JWT.PublicKeyPath == "" {
		fail("JWT_PUBLIC_KEY_PATH is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		fail("server read and write timeouts must be positive")
	}
	if c.CORS.AllowCredentials && slices.Contains(c.CORS.AllowedOrigins, "*") {
		fail("CORS wildcard '*' cannot be used with allow_credentials")
	}
	if c.IsProduction() && c.Otel.Enabled && c.Otel.Insecure {
		fail("OTEL_INSECURE must be false in production")
	}
	if c.Content.CacheTTL < 0 {
		fail("content.cache_ttl must not be negative")
	}
	if c.Audit.Enabled && c.Audit.AMQPURL == "" {
		fail("AUDIT_AMQP_URL is required when audit is enabled")
	}

	errs = append(errs, c.Plans.validate(), c.Economy.validate(), c.Progress.validate())
	return errors.Join(errs...)
}

func (p *PlansConfig) validate() error {
	switch {
	case p.FreeMaxWeek < 0:
		return errors.New("plans.free_max_week must not be negative")
	case p.BasicMaxWeek < p.FreeMaxWeek:
		return fmt.Errorf(
			"plans.basic_max_week (%d) must be at least plans.free_max_week (%d)",
			p.BasicMaxWeek, p.FreeMaxWeek,
		)
	}
	return nil
}

func (e *EconomyConfig) validate() error {
	switch {
	case e.HintBaseCost <= 0:
		return errors.New("economy.hint_base_cost must be positive")
	case e.SolutionCost <= 0:
		return errors.New("economy.solution_cost must be positive")
	case e.PassReward < 0:
		return errors.New("economy.pass_reward must not be negative")
	case e.XPBoostPercent < 0:
		return errors.New("economy.xp_boost_percent must not be negative")
	}
	return nil
}

func (p *ProgressConfig) validate() error {
	t := p.LevelThresholds
	if len(t) < 2 || t[0] != 0 {
		return errors.New("progress.level_thresholds needs at least two levels starting at 0")
	}
	for i := 1; i < len(t); i++ {
		if t[i] <= t[i-1] {
			return fmt.Errorf("progress.level_thresholds must be strictly ascending at index %d", i)
		}
	}
	if _, err := time.LoadLocation(p.StreakTimezone); err != nil {
		return fmt.Errorf("progress.streak_timezone: %w", err)
	}
	return nil
}

// Location is safe to call after validation.
func (p *ProgressConfig) Location() *time.Location {
	loc, err := time.LoadLocation(p.StreakTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
