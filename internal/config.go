package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Gateways      GatewaysConfig      `mapstructure:"gateways"`
	Sweeper       SweeperConfig       `mapstructure:"sweeper"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type ObservabilityConfig struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// GatewaysConfig declares the provider chain: payments go to Primary first
// and fall back in order when a provider declines or errors.
type GatewaysConfig struct {
	Primary            string                       `mapstructure:"primary"`
	Fallbacks          []string                     `mapstructure:"fallbacks"`
	CallbackBaseURL    string                       `mapstructure:"callback_base_url"`
	DefaultCountryCode string                       `mapstructure:"default_country_code"`
	Credentials        map[string]map[string]string `mapstructure:"credentials"`
}

type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	if err := c.Gateways.Validate(); err != nil {
		return fmt.Errorf("gateways config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	return nil
}

func (d *DatabaseConfig) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("host is required")
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.User == "" {
		return fmt.Errorf("user is required")
	}
	return nil
}

func (g *GatewaysConfig) Validate() error {
	if g.Primary == "" {
		return fmt.Errorf("primary provider is required")
	}
	if g.CallbackBaseURL == "" {
		return fmt.Errorf("callback_base_url is required")
	}
	if _, ok := g.Credentials[g.Primary]; !ok {
		return fmt.Errorf("no credentials configured for primary provider %q", g.Primary)
	}
	return nil
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *SweeperConfig) SweepInterval() time.Duration {
	if s.Interval <= 0 {
		return 5 * time.Minute
	}
	return s.Interval
}
