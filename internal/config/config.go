package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Station  StationConfig  `mapstructure:"station"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Stations StationsConfig `mapstructure:"stations"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StationConfig carries the defaults applied to every station unless the
// station definition overrides them.
type StationConfig struct {
	TransitionDelay     time.Duration `mapstructure:"transition_delay"`
	ProgressInterval    time.Duration `mapstructure:"progress_interval"`
	MonitorJoinTimeout  time.Duration `mapstructure:"monitor_join_timeout"`
	ProcessPollInterval time.Duration `mapstructure:"process_poll_interval"`
	FaultProbability    float64       `mapstructure:"fault_probability"`
}

type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// Auth Configuration
type AuthConfig struct {
	JWTSecretEnv         string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL       time.Duration `mapstructure:"access_token_ttl"`
	OperatorUser         string        `mapstructure:"operator_user"`
	OperatorPasswordHash string        `mapstructure:"operator_password_hash"`
}

type StationsConfig struct {
	File string `mapstructure:"file"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")

	viper.SetDefault("station.transition_delay", "100ms")
	viper.SetDefault("station.progress_interval", "100ms")
	viper.SetDefault("station.monitor_join_timeout", "500ms")
	viper.SetDefault("station.process_poll_interval", "50ms")
	viper.SetDefault("station.fault_probability", 0.01)

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.max_connections", 10)

	// Auth Defaults
	viper.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	viper.SetDefault("auth.access_token_ttl", "60m")
	viper.SetDefault("auth.operator_user", "operator")

	viper.SetDefault("stations.file", "configs/stations.yaml")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PSC")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// JWT Secret aus Environment Variable laden
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET"
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		// Development Fallback (MIT WARNING!)
		return "dev-secret-change-in-production-min-32-chars"
	}
	return secret
}

func (a *AuthConfig) IsProductionReady() bool {
	secret := a.GetJWTSecret()
	return secret != "dev-secret-change-in-production-min-32-chars" && len(secret) >= 32
}
