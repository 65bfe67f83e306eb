package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/uirecorder/teststore/pkg/stores"
	"github.com/uirecorder/teststore/pkg/telemetry"
	"github.com/uirecorder/teststore/pkg/testmodel"
)

// Config is the complete teststore configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Tables overrides the default table names. Checked by stores.ValidateTables.
	Tables stores.Tables `yaml:"tables" json:"tables" validate:"-"`

	// Owner is used when a command or context names no owner.
	Owner string `yaml:"owner" json:"owner" validate:"required,max=256"`

	Importer ImporterConfig `yaml:"importer" json:"importer"`

	Telemetry telemetry.Config `yaml:"telemetry" json:"telemetry" validate:"-"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	// Path is the database file, or ":memory:".
	Path string `yaml:"path" json:"path" validate:"required"`

	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" validate:"gte=0"`
}

// ImporterConfig configures directory imports.
type ImporterConfig struct {
	// Dir is the directory imported when none is given on the command line.
	Dir string `yaml:"dir" json:"dir"`

	// Watch keeps re-importing changed files.
	Watch bool `yaml:"watch" json:"watch"`

	// Debounce is how long a file must be quiet before it is re-imported.
	Debounce time.Duration `yaml:"debounce" json:"debounce" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "teststore.db",
		},
		Tables: stores.DefaultTables(),
		Owner:  testmodel.DefaultOwner,
		Importer: ImporterConfig{
			Debounce: 500 * time.Millisecond,
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := stores.ValidateTables(c.Tables); err != nil {
		return err
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return nil
}

// StoreConfig converts the database section into a stores.Config.
func (c *Config) StoreConfig(tel *telemetry.Telemetry) stores.Config {
	return stores.Config{
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		Tables:          c.Tables,
		Telemetry:       tel,
	}
}
