package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" validate:"omitempty,oneof=mysql sqlite"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	Path            string `mapstructure:"path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// GetDSN builds the MySQL DSN. SQLite connections use Path directly.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MeteringConfig is the entitlement surface consumed by the ledger and
// reconciler. ResetPeriod is informational only: the renewal comparator is
// driven entirely by transaction timestamps.
type MeteringConfig struct {
	ProductID     string `mapstructure:"product_id" validate:"required"`
	ProductIDDev  string `mapstructure:"product_id_dev"`
	FreeTierLimit int    `mapstructure:"free_tier_limit" validate:"gte=0"`
	ProTierLimit  int    `mapstructure:"pro_tier_limit" validate:"gte=0"`
	ResetPeriod   string `mapstructure:"reset_period" validate:"oneof=monthly weekly daily"`
	DeviceIDPath  string `mapstructure:"device_id_path"`
}

var validate = validator.New()

// Validate fails fast on programmer error: missing product id, negative
// limits or an unknown reset period.
func (m *MeteringConfig) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid metering config: %w", err)
	}
	return nil
}

// Validate checks the database section.
func (d *DatabaseConfig) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}
	if d.Driver == "sqlite" && d.Path == "" {
		return fmt.Errorf("invalid database config: sqlite driver requires path")
	}
	return nil
}
