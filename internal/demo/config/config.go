// Package config loads the demo settings from flags, SM2DEMO_* environment
// variables and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment overrides, e.g. SM2DEMO_SERVER_URL.
const EnvPrefix = "SM2DEMO"

const (
	keyListen       = "listen"
	keyServerID     = "server-id"
	keyServerKey    = "server-key"
	keyClientID     = "client-id"
	keyClientKey    = "client-key"
	keyServerURL    = "server-url"
	keyKeyLength    = "key-length"
	keySessionLimit = "session-limit"
	keySessionTTL   = "session-ttl"
	keyReplayCache  = "replay-cache"
	keyLogLevel     = "log-level"
	keyLogFormat    = "log-format"
)

type Config struct {
	Listen       string
	ServerID     string
	ServerKey    string // hex private key; generated at startup when empty
	ClientID     string
	ClientKey    string
	ServerURL    string
	KeyLength    int
	SessionLimit int
	SessionTTL   time.Duration
	ReplayCache  int
	LogLevel     string
	LogFormat    string
}

// RegisterFlags adds every setting to fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(keyListen, ":8080", "address the demo server listens on")
	fs.String(keyServerID, "server@demo.aicc", "user ID of the responder")
	fs.String(keyServerKey, "", "hex private key of the responder (random when empty)")
	fs.String(keyClientID, "go-client@demo.aicc", "user ID of the initiator")
	fs.String(keyClientKey, "", "hex private key of the initiator (random when empty)")
	fs.String(keyServerURL, "http://localhost:8080", "base URL of the demo server")
	fs.Int(keyKeyLength, 16, "negotiated key length in bytes")
	fs.Int(keySessionLimit, 1024, "maximum number of live sessions, 0 for no limit")
	fs.Duration(keySessionTTL, 2*time.Minute, "lifetime of a session from init, 0 to keep sessions until used")
	fs.Int(keyReplayCache, 4096, "number of initiator ephemeral keys remembered for replay detection")
	fs.String(keyLogLevel, "info", "log level (debug, info, warn, error)")
	fs.String(keyLogFormat, "json", "log format (json or console)")
}

// Load resolves the settings. Flags win over the environment, which wins
// over defaults.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	cfg := &Config{
		Listen:       v.GetString(keyListen),
		ServerID:     v.GetString(keyServerID),
		ServerKey:    v.GetString(keyServerKey),
		ClientID:     v.GetString(keyClientID),
		ClientKey:    v.GetString(keyClientKey),
		ServerURL:    strings.TrimRight(v.GetString(keyServerURL), "/"),
		KeyLength:    v.GetInt(keyKeyLength),
		SessionLimit: v.GetInt(keySessionLimit),
		SessionTTL:   v.GetDuration(keySessionTTL),
		ReplayCache:  v.GetInt(keyReplayCache),
		LogLevel:     v.GetString(keyLogLevel),
		LogFormat:    v.GetString(keyLogFormat),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the settings RegisterFlags declares.
func Default() *Config {
	fs := pflag.NewFlagSet("default", pflag.ContinueOnError)
	RegisterFlags(fs)
	cfg, err := Load(fs)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.KeyLength <= 0 {
		return fmt.Errorf("key length must be positive, got %d", c.KeyLength)
	}
	if c.SessionLimit < 0 {
		return fmt.Errorf("session limit must not be negative, got %d", c.SessionLimit)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session TTL must not be negative, got %s", c.SessionTTL)
	}
	if c.ReplayCache < 0 {
		return fmt.Errorf("replay cache size must not be negative, got %d", c.ReplayCache)
	}
	if c.ServerID == "" || c.ClientID == "" {
		return fmt.Errorf("server and client IDs must not be empty")
	}
	return nil
}
