package modelsql

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Dialect identifies the SQL dialect used when a statement is executed.
// Converted statement text always uses "?" placeholders; the dialect only
// matters for SQL(table) rebinding in Exec and ExecBatch.
type Dialect int

// Mode is the statement shape of a conversion, derived once from the key list.
type Mode int

// Converter is the main entry point. It holds an immutable configuration and
// may be shared by any number of goroutines: every conversion owns its own
// accumulators and parameter containers.
type Converter struct {
	config Config
	log    *slog.Logger
	sig    string
}

// Config defines how records are inspected.
type Config struct {
	// Dialect used to rebind placeholders on execution. Defaults to SQLite.
	Dialect Dialect `yaml:"dialect"`
	// Tag is the struct tag key holding column names. Defaults to "db".
	Tag string `yaml:"tag"`
	// Naming maps untagged Go field names to column names.
	Naming Naming `yaml:"naming"`
	// SystemFields lists member names that are never persisted
	// (case-insensitive). Defaults to the serialization-version marker.
	SystemFields []string `yaml:"system_fields"`
	// Logger receives per-member diagnostics. Defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

const (
	SQLite Dialect = iota
	Postgres
	MySQL
	SQLServer
)

const (
	Insert Mode = iota
	Update
)

const cacheSize = 1024 // Default size for the field-plan cache

// DefaultSystemFields is used when Config.SystemFields is empty.
var DefaultSystemFields = []string{"serialVersionUID"}

var (
	ErrEmptyStatement = errors.New("modelsql: empty statement")
	ErrMemberAccess   = errors.New("modelsql: member not accessible")
	ErrInvalidRecord  = errors.New("modelsql: invalid record")
	ErrEmptyBatch     = errors.New("modelsql: empty batch")
	ErrMixedRecords   = errors.New("modelsql: batch records of different types")
	ErrRaggedBatch    = errors.New("modelsql: batch row null pattern differs from first row")
	ErrFieldAmbiguous = errors.New("modelsql: ambiguous field name")
	ErrDuplicateKey   = errors.New("modelsql: duplicate key")
	ErrUnknownDialect = errors.New("modelsql: unknown dialect")
)

// FieldError reports a member that could not be read. It never aborts a
// conversion; it is logged and collected in the result's Warnings.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %q: %v", ErrMemberAccess, e.Field, e.Err)
}

func (e *FieldError) Unwrap() []error {
	return []error{ErrMemberAccess, e.Err}
}

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	case SQLServer:
		return "sqlserver"
	default:
		return "unknown"
	}
}

// ParseDialect returns the dialect named by s (case-insensitive).
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	}
	return SQLite, fmt.Errorf("%w: %q", ErrUnknownDialect, s)
}

// UnmarshalText lets a Dialect be read from configuration files.
func (d *Dialect) UnmarshalText(text []byte) error {
	v, err := ParseDialect(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (m Mode) String() string {
	if m == Update {
		return "update"
	}
	return "insert"
}

// New returns a Converter. Optionally provide a Config; unspecified fields
// fall back to defaults.
func New(cfg ...Config) *Converter {
	c := defaultConfig(cfg...)
	return &Converter{
		config: c,
		log:    c.Logger,
		sig:    configSignature(c),
	}
}

// Config returns the effective configuration.
func (c *Converter) Config() Config {
	out := c.config
	out.SystemFields = append([]string(nil), c.config.SystemFields...)
	return out
}

var defaultConverter = New()

// Convert converts one record with the default Converter.
func Convert(record any, keys ...string) (*Statement, error) {
	return defaultConverter.Convert(record, keys...)
}

// ConvertBatch converts a slice of same-typed records with the default Converter.
func ConvertBatch(records any, keys ...string) (*Batch, error) {
	return defaultConverter.ConvertBatch(records, keys...)
}

// modeOf derives the conversion mode from the key list.
func modeOf(keys []string) Mode {
	if len(keys) > 0 {
		return Update
	}
	return Insert
}

// defaultConfig merges user config with defaults.
func defaultConfig(config ...Config) Config {
	c := Config{}

	if len(config) > 0 {
		c = config[0]
	}

	if c.Tag == "" {
		c.Tag = "db"
	}

	if len(c.SystemFields) == 0 {
		c.SystemFields = DefaultSystemFields
	}
	c.SystemFields = append([]string(nil), c.SystemFields...)

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return c
}
