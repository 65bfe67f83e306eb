package stores

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/uirecorder/teststore/pkg/telemetry"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedPayload is returned when a stored JSON column cannot be decoded.
	ErrMalformedPayload = errors.New("malformed stored payload")

	// ErrInvalidTest is returned when a test or report fails validation.
	ErrInvalidTest = errors.New("invalid test definition")

	// ErrNotInitialized is returned when the store is used before Init.
	ErrNotInitialized = errors.New("database not initialized")
)

// Default table names.
const (
	DefaultOwnersTable  = "owners"
	DefaultTestsTable   = "tests"
	DefaultReportsTable = "reports"
)

// Tables names the three tables backing a store.
type Tables struct {
	Owners  string `yaml:"owners" json:"owners" validate:"required,sqlident,nefield=Tests,nefield=Reports"`
	Tests   string `yaml:"tests" json:"tests" validate:"required,sqlident,nefield=Reports"`
	Reports string `yaml:"reports" json:"reports" validate:"required,sqlident"`
}

// DefaultTables returns the default table names.
func DefaultTables() Tables {
	return Tables{
		Owners:  DefaultOwnersTable,
		Tests:   DefaultTestsTable,
		Reports: DefaultReportsTable,
	}
}

func (t Tables) withDefaults() Tables {
	if t.Owners == "" {
		t.Owners = DefaultOwnersTable
	}
	if t.Tests == "" {
		t.Tests = DefaultTestsTable
	}
	if t.Reports == "" {
		t.Reports = DefaultReportsTable
	}
	return t
}

// migrationsTable is where golang-migrate records the schema version. Stores
// with custom table names keep their own version table.
func (t Tables) migrationsTable() string {
	if t == DefaultTables() {
		return "schema_migrations"
	}
	return t.Tests + "_schema_migrations"
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	Tables Tables

	// Telemetry receives logs, spans, metrics and events. Nil records nothing.
	Telemetry *telemetry.Telemetry
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return isIdentifier(fl.Field().String())
	})
	return v
}

// isIdentifier reports whether s is safe to splice into SQL as a table name.
func isIdentifier(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// ValidateTables checks that table names are distinct SQL identifiers.
func ValidateTables(t Tables) error {
	if err := configValidator.Struct(t); err != nil {
		return fmt.Errorf("invalid table names: %w", err)
	}
	return nil
}
