package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Host        string
	Port        int
	Environment string
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// user registry and audit log
	UsersFilePath string `toml:"users_file_path"`
	AuditLogPath  string `toml:"audit_log_path"`
	// served content
	StaticDirPath  string `toml:"static_dir_path"`
	AssetsDirPath  string `toml:"assets_dir_path"`
	AvatarsDirPath string `toml:"avatars_dir_path"`
	// sessions
	SessionTTLMinutes int `toml:"session_ttl_minutes"`
	// tls, both empty for plain http
	TLSCertPath string `toml:"tls_cert_path"`
	TLSKeyPath  string `toml:"tls_key_path"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
}

func (c *Config) SessionTTL() time.Duration {
	if c.SessionTTLMinutes <= 0 {
		// reference deployment uses a 3 minutes sliding window
		return 3 * time.Minute
	}
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.DecodeFile(path, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	cfg, err := tomlConfig.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}

	cfg.Environment = env
	return cfg, nil
}
