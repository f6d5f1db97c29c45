package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// NetworkConfig holds WebSocket listener settings.
type NetworkConfig struct {
	BindAddress    string   `yaml:"bind_address"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the
// document store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns int32 `yaml:"max_conns"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
	if d.MaxConns > 0 {
		base += fmt.Sprintf("&pool_max_conns=%d", d.MaxConns)
	}
	return base
}

// AOIConfig tunes the spatial index.
type AOIConfig struct {
	CellSize     float64 `yaml:"cell_size"`
	ViewDistance int     `yaml:"view_distance"` // k: (2k+1)x(2k+1) window
}

// ThrottleTier is one squared-distance bucket with its own update
// interval. A negative MaxDistanceSquared marks the catch-all tier.
type ThrottleTier struct {
	MaxDistanceSquared float64 `yaml:"max_distance_squared"`
	IntervalTicks      int     `yaml:"interval_ticks"`
}

// ThrottleConfig tunes the per-pair update throttler.
type ThrottleConfig struct {
	Tiers []ThrottleTier `yaml:"tiers"`
}

// BatchConfig tunes per-subscriber update batching.
type BatchConfig struct {
	MaxUpdatesPerFlush int `yaml:"max_updates_per_flush"`
}

// TickConfig tunes the fixed-rate game loop.
type TickConfig struct {
	RateHz int `yaml:"rate_hz"`
}

// AuthConfig tunes authentication and anonymous account creation.
type AuthConfig struct {
	JWTSecret              string `yaml:"jwt_secret"`
	JWTIssuer              string `yaml:"jwt_issuer"`
	AnonymousRatePerMinute int    `yaml:"anonymous_rate_per_minute"`
	AnonymousBurst         int    `yaml:"anonymous_burst"`
}

// TradeConfig tunes trade session timeouts.
type TradeConfig struct {
	RequestCooldownMS int `yaml:"request_cooldown_ms"`
	RequestTimeoutMS  int `yaml:"request_timeout_ms"`
	ActivityTimeoutMS int `yaml:"activity_timeout_ms"`
	JanitorIntervalMS int `yaml:"janitor_interval_ms"`
}

// AntiCheatConfig tunes position validation.
type AntiCheatConfig struct {
	MaxSpeedUnitsPerSecond    float64 `yaml:"max_speed_units_per_second"`
	WindowSeconds             float64 `yaml:"window_seconds"`
	ViolationDecayPerSecond   float64 `yaml:"violation_decay_per_second"`
	ViolationLimit            float64 `yaml:"violation_limit"`
	TerrainCheckIntervalTicks int     `yaml:"terrain_check_interval_ticks"`
}

// PublicConfig holds the client-facing values the snapshot handshake
// packet reports, sourced from the PUBLIC_* environment variables.
type PublicConfig struct {
	APIURL        string `yaml:"api_url"`
	WSURL         string `yaml:"ws_url"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

// DebugConfig gates verbose logging for specific subsystems, toggled
// independently of LogLevel so they can stay off in a noisy production
// log stream.
type DebugConfig struct {
	FaceDirection bool `yaml:"face_direction"`
	PendingGather bool `yaml:"pending_gather"`
}

// Config is the server's full runtime configuration.
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Database  DatabaseConfig  `yaml:"database"`
	AOI       AOIConfig       `yaml:"aoi"`
	Throttle  ThrottleConfig  `yaml:"throttle"`
	Batch     BatchConfig     `yaml:"batch"`
	Tick      TickConfig      `yaml:"tick"`
	Auth      AuthConfig      `yaml:"auth"`
	Trade     TradeConfig     `yaml:"trade"`
	AntiCheat AntiCheatConfig `yaml:"anticheat"`
	Public    PublicConfig    `yaml:"public"`
	Debug     DebugConfig     `yaml:"debug"`
	AdminCode string          `yaml:"admin_code"`
	NodeEnv   string          `yaml:"node_env"`
	LogLevel  string          `yaml:"log_level"`
}

// DevMode reports whether NodeEnv designates a non-production
// environment, gating the ~admin dev-only role grant and selecting
// zap's development logger encoding.
func (c Config) DevMode() bool {
	return c.NodeEnv != "production"
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			BindAddress: "0.0.0.0",
			Port:        8080,
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "coreserver",
			Password: "coreserver",
			DBName:   "coreserver",
			SSLMode:  "disable",
		},
		AOI: AOIConfig{
			CellSize:     16,
			ViewDistance: 2,
		},
		Throttle: ThrottleConfig{
			Tiers: []ThrottleTier{
				{MaxDistanceSquared: 625, IntervalTicks: 1},
				{MaxDistanceSquared: 2500, IntervalTicks: 2},
				{MaxDistanceSquared: 10000, IntervalTicks: 4},
				{MaxDistanceSquared: -1, IntervalTicks: 8},
			},
		},
		Batch: BatchConfig{
			MaxUpdatesPerFlush: 256,
		},
		Tick: TickConfig{
			RateHz: 20,
		},
		Auth: AuthConfig{
			JWTIssuer:              "coreserver",
			AnonymousRatePerMinute: 5,
			AnonymousBurst:         2,
		},
		Trade: TradeConfig{
			RequestCooldownMS: 5000,
			RequestTimeoutMS:  15000,
			ActivityTimeoutMS: 120000,
			JanitorIntervalMS: 10000,
		},
		AntiCheat: AntiCheatConfig{
			MaxSpeedUnitsPerSecond:    9,
			WindowSeconds:             5,
			ViolationDecayPerSecond:   0.2,
			ViolationLimit:            5,
			TerrainCheckIntervalTicks: 20,
		},
		Public: PublicConfig{
			APIURL:        "http://localhost:8080",
			WSURL:         "ws://localhost:8080/ws",
			MaxUploadSize: 10 << 20,
		},
		NodeEnv:  "development",
		LogLevel: "info",
	}
}

// Load reads a Config from a YAML file at path, starting from
// Default() and overlaying whatever the file sets. A missing file is
// not an error; it returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overlays environment variables on top of an already-loaded
// Config, following a CORESERVER_SECTION_FIELD convention.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("CORESERVER_BIND_ADDRESS"); v != "" {
		cfg.Network.BindAddress = v
	}
	if v := os.Getenv("CORESERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Network.Port = p
		}
	}
	if v := os.Getenv("CORESERVER_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("CORESERVER_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = p
		}
	}
	if v := os.Getenv("CORESERVER_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("CORESERVER_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("CORESERVER_DB_NAME"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("CORESERVER_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("CORESERVER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return applyPublicEnv(cfg)
}

// applyPublicEnv overlays the spec's client-facing environment
// variables, the second phase of the same load-then-overlay pattern
// ApplyEnv uses for the CORESERVER_* namespace.
func applyPublicEnv(cfg Config) Config {
	if v := os.Getenv("PUBLIC_API_URL"); v != "" {
		cfg.Public.APIURL = v
	}
	if v := os.Getenv("PUBLIC_WS_URL"); v != "" {
		cfg.Public.WSURL = v
	}
	if v := os.Getenv("PUBLIC_MAX_UPLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Public.MaxUploadSize = n
		}
	}
	if v := os.Getenv("ADMIN_CODE"); v != "" {
		cfg.AdminCode = v
	}
	if v := os.Getenv("NODE_ENV"); v != "" {
		cfg.NodeEnv = v
	}
	if v := os.Getenv("HYPERSCAPE_DEBUG_FACE_DIRECTION"); v != "" {
		cfg.Debug.FaceDirection = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HYPERSCAPE_DEBUG_PENDING_GATHER"); v != "" {
		cfg.Debug.PendingGather = v == "1" || strings.EqualFold(v, "true")
	}
	return cfg
}

// ConfigPath resolves the config file path: the CORESERVER_CONFIG env
// var if set, else the given default.
func ConfigPath(def string) string {
	if v := strings.TrimSpace(os.Getenv("CORESERVER_CONFIG")); v != "" {
		return v
	}
	return def
}
