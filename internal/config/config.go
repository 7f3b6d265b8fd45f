package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/rilctl/internal/ril"
	"gopkg.in/yaml.v3"
)

// Config is the resolved rilctl configuration.
type Config struct {
	Client    ril.Config
	AdminAddr string
	// AdminToken, when set, is required as a bearer token on admin writes.
	AdminToken  string
	CorsOrigins []string
}

func Default() Config {
	return Config{
		Client:      ril.DefaultConfig(),
		CorsOrigins: []string{"http://localhost:3000"},
	}
}

// fileConfig is the on-disk shape. Durations are strings such as "4s".
type fileConfig struct {
	SocketPath             *string  `toml:"socket_path" yaml:"socket_path,omitempty"`
	Network                *string  `toml:"network" yaml:"network,omitempty"`
	ConnectTimeout         *string  `toml:"connect_timeout" yaml:"connect_timeout,omitempty"`
	RetryInterval          *string  `toml:"retry_interval" yaml:"retry_interval,omitempty"`
	MaxLoggedRetries       *int     `toml:"max_logged_retries" yaml:"max_logged_retries,omitempty"`
	WriteTimeout           *string  `toml:"write_timeout" yaml:"write_timeout,omitempty"`
	KeepAliveTimeout       *string  `toml:"keepalive_timeout" yaml:"keepalive_timeout,omitempty"`
	MaxFrameBytes          *uint32  `toml:"max_frame_bytes" yaml:"max_frame_bytes,omitempty"`
	PoolSize               *int     `toml:"pool_size" yaml:"pool_size,omitempty"`
	QueueSize              *int     `toml:"queue_size" yaml:"queue_size,omitempty"`
	PowerOffOnFirstConnect *bool    `toml:"power_off_on_first_connect" yaml:"power_off_on_first_connect,omitempty"`
	ScreenOnWhenAvailable  *bool    `toml:"screen_on_when_available" yaml:"screen_on_when_available,omitempty"`
	AdminAddr              *string  `toml:"admin_addr" yaml:"admin_addr,omitempty"`
	AdminToken             *string  `toml:"admin_token" yaml:"admin_token,omitempty"`
	CorsOrigins            []string `toml:"cors_origins" yaml:"cors_origins,omitempty"`
}

// Load reads a TOML file, or a YAML file when path ends in .yaml or .yml,
// and overlays it on Default.
func Load(path string) (Config, error) {
	var (
		raw fileConfig
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(path, &raw)
	default:
		err = decodeTOML(path, &raw)
	}
	if err != nil {
		return Config{}, err
	}

	cfg, err := apply(Default(), raw)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func decodeTOML(path string, out *fileConfig) error {
	meta, err := toml.DecodeFile(path, out)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("config load failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func decodeYAML(path string, out *fileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return nil
}

func apply(cfg Config, raw fileConfig) (Config, error) {
	if raw.SocketPath != nil {
		cfg.Client.Address = strings.TrimSpace(*raw.SocketPath)
	}
	if raw.Network != nil {
		cfg.Client.Network = strings.TrimSpace(*raw.Network)
	}

	durations := []struct {
		key string
		raw *string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.Client.ConnectTimeout},
		{"retry_interval", raw.RetryInterval, &cfg.Client.RetryInterval},
		{"write_timeout", raw.WriteTimeout, &cfg.Client.WriteTimeout},
		{"keepalive_timeout", raw.KeepAliveTimeout, &cfg.Client.KeepAliveTimeout},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(*d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if raw.MaxLoggedRetries != nil {
		cfg.Client.MaxLoggedRetries = *raw.MaxLoggedRetries
	}
	if raw.MaxFrameBytes != nil {
		cfg.Client.MaxFrameBytes = *raw.MaxFrameBytes
	}
	if raw.PoolSize != nil {
		cfg.Client.PoolSize = *raw.PoolSize
	}
	if raw.QueueSize != nil {
		cfg.Client.QueueSize = *raw.QueueSize
	}
	if raw.PowerOffOnFirstConnect != nil {
		cfg.Client.PowerOffOnFirstConnect = *raw.PowerOffOnFirstConnect
	}
	if raw.ScreenOnWhenAvailable != nil {
		cfg.Client.ScreenOnWhenAvailable = *raw.ScreenOnWhenAvailable
	}
	if raw.AdminAddr != nil {
		cfg.AdminAddr = strings.TrimSpace(*raw.AdminAddr)
	}
	if raw.AdminToken != nil {
		cfg.AdminToken = strings.TrimSpace(*raw.AdminToken)
	}
	if raw.CorsOrigins != nil {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	c := cfg.Client
	if strings.TrimSpace(c.Address) == "" {
		return fmt.Errorf("socket_path is required")
	}
	switch c.Network {
	case "unix", "unixpacket", "tcp", "tcp4", "tcp6":
	default:
		return fmt.Errorf("unsupported network %q", c.Network)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be positive")
	}
	if c.KeepAliveTimeout <= 0 {
		return fmt.Errorf("keepalive_timeout must be positive")
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout must not be negative")
	}
	if c.MaxLoggedRetries < 0 {
		return fmt.Errorf("max_logged_retries must not be negative")
	}
	if c.MaxFrameBytes < 64 {
		return fmt.Errorf("max_frame_bytes must be at least 64")
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must not be negative")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}
	for i, origin := range cfg.CorsOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("cors_origins[%d] must be an http(s) origin: %q", i, origin)
		}
	}
	return nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimRight(strings.TrimSpace(origin), "/")
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
