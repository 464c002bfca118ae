package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. HRGATE_SERVER_PORT.
const EnvPrefix = "HRGATE_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Audit    AuditConfig    `koanf:"audit"`
	Access   AccessConfig   `koanf:"access"`
	RBAC     RBACConfig     `koanf:"rbac"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	CORS     CORSConfig     `koanf:"cors"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MigrationsPath string `koanf:"migrations"`
	MaxConns       int    `koanf:"maxconns"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type AuthConfig struct {
	DevMode bool      `koanf:"devmode"`
	JWT     JWTConfig `koanf:"jwt"`
}

type JWTConfig struct {
	SigningKey         string `koanf:"signingkey"`
	Issuer             string `koanf:"issuer"`
	ExpiryHours        int    `koanf:"expiryhours"`
	RefreshExpiryHours int    `koanf:"refreshexpiryhours"`
}

type AuditConfig struct {
	BufferSize int `koanf:"buffersize"`
	BatchSize  int `koanf:"batchsize"`
	FlushMS    int `koanf:"flushms"`
}

func (a AuditConfig) FlushInterval() time.Duration {
	return time.Duration(a.FlushMS) * time.Millisecond
}

// AccessConfig tunes the decision engine.
type AccessConfig struct {
	// RulesFailOpen allows actions that have no rule policy at all.
	RulesFailOpen bool   `koanf:"rulesfailopen"`
	TimeoutMS     int    `koanf:"timeoutms"`
	Timezone      string `koanf:"timezone"`
	TrustProxy    bool   `koanf:"trustproxy"`
}

func (a AccessConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMS) * time.Millisecond
}

// Location resolves Timezone, falling back to UTC.
func (a AccessConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(a.Timezone)
}

type RBACConfig struct {
	ReloadSecs int `koanf:"reloadsecs"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":                 8080,
		"server.host":                 "0.0.0.0",
		"database.maxconns":           25,
		"database.migrations":         "migrations",
		"log.level":                   "info",
		"log.format":                  "json",
		"auth.devmode":                false,
		"auth.jwt.issuer":             "hrgate",
		"auth.jwt.expiryhours":        24,
		"auth.jwt.refreshexpiryhours": 168,
		"audit.buffersize":            4096,
		"audit.batchsize":             100,
		"audit.flushms":               500,
		"access.rulesfailopen":        true,
		"access.timeoutms":            5000,
		"access.timezone":             "UTC",
		"access.trustproxy":           false,
		"rbac.reloadsecs":             60,
		"metrics.enabled":             true,
		"cors.origins":                []string{},
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Config file is optional, skip if not found
			continue
		}
	}

	// Environment variables override everything
	// HRGATE_SERVER_PORT -> server.port
	_ = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, EnvPrefix)),
			"_", ".",
		)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
