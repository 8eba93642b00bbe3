package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath       string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret          string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer          string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience        string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	Calls CallsConfig `mapstructure:"calls" yaml:"calls"`
	Pool  PoolConfig  `mapstructure:"pool" yaml:"pool"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// CallsConfig tunes the signaling relay.
type CallsConfig struct {
	// VerifyCandidateMembership drops ICE candidates unless both ends are
	// the parties of a live call.
	VerifyCandidateMembership bool `mapstructure:"verify_candidate_membership" yaml:"verify_candidate_membership"`
	// ValidateSDP requires offers and answers to parse as SDP.
	ValidateSDP bool `mapstructure:"validate_sdp" yaml:"validate_sdp"`
}

// PoolConfig sizes the key sealing worker pool. Zero picks a size from the CPU count.
type PoolConfig struct {
	Size int `mapstructure:"size" yaml:"size"`
}

// RedisConfig enables cross-instance fan-out of signaling events.
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr          string `mapstructure:"addr" yaml:"addr"`
	Password      string `mapstructure:"password" yaml:"password"`
	DB            int    `mapstructure:"db" yaml:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		DatabasePath:       "chatforia.db",
		JWTSecret:          "change-me",
		JWTIssuer:          "chatforia",
		JWTAudience:        "chatforia",
		MaxMessageBytes:    64 << 10,
		RateLimitPerMinute: 600,
		Calls: CallsConfig{
			VerifyCandidateMembership: true,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			ChannelPrefix: "chatforia:",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Boolean switches are left alone; they only come from file, env or flags.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.Pool.Size != 0 {
		c.Pool.Size = other.Pool.Size
	}
	if other.Redis.Addr != "" {
		c.Redis.Addr = other.Redis.Addr
	}
}
