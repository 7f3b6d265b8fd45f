package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Template renders cfg in the given format ("toml" or "yaml").
func Template(format string, cfg Config) (string, error) {
	file := toFile(cfg)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "toml":
		out, err := toml.Marshal(file)
		if err != nil {
			return "", fmt.Errorf("render toml template: %w", err)
		}
		return string(out), nil
	case "yaml", "yml":
		out, err := yaml.Marshal(file)
		if err != nil {
			return "", fmt.Errorf("render yaml template: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unknown config format: %s", format)
	}
}

// WriteTemplate writes the default configuration to path.
func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format, Default())
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func toFile(cfg Config) fileConfig {
	c := cfg.Client
	origins := cfg.CorsOrigins
	if origins == nil {
		origins = []string{}
	}
	return fileConfig{
		SocketPath:             ptr(c.Address),
		Network:                ptr(c.Network),
		ConnectTimeout:         ptr(c.ConnectTimeout.String()),
		RetryInterval:          ptr(c.RetryInterval.String()),
		MaxLoggedRetries:       ptr(c.MaxLoggedRetries),
		WriteTimeout:           ptr(c.WriteTimeout.String()),
		KeepAliveTimeout:       ptr(c.KeepAliveTimeout.String()),
		MaxFrameBytes:          ptr(c.MaxFrameBytes),
		PoolSize:               ptr(c.PoolSize),
		QueueSize:              ptr(c.QueueSize),
		PowerOffOnFirstConnect: ptr(c.PowerOffOnFirstConnect),
		ScreenOnWhenAvailable:  ptr(c.ScreenOnWhenAvailable),
		AdminAddr:              ptr(cfg.AdminAddr),
		AdminToken:             ptr(cfg.AdminToken),
		CorsOrigins:            origins,
	}
}

func ptr[T any](v T) *T {
	return &v
}
