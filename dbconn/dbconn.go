// Package dbconn opens database handles for the drivers modelsql executes
// statements against, from code or from a YAML file.
package dbconn

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/gandaldf/modelsql"
)

// Driver names registered with database/sql.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

var ErrUnknownDriver = errors.New("dbconn: unknown driver")

// Config describes one database. DSN, when set, is passed to the driver
// as is; otherwise it is built from the other fields.
type Config struct {
	Driver   string            `yaml:"driver"`
	DSN      string            `yaml:"dsn"`
	Host     string            `yaml:"host"`
	Port     string            `yaml:"port"`
	Database string            `yaml:"database"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Params   map[string]string `yaml:"params"`
}

// Load reads a YAML database configuration. Unknown keys are rejected.
func Load(r io.Reader) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("dbconn: read config: %w", err)
	}
	return c, nil
}

// Open opens (but does not ping) the database described by config.
func Open(config Config) (*sqlx.DB, error) {
	dsn, err := config.ConnString()
	if err != nil {
		return nil, err
	}
	return sqlx.Open(config.Driver, dsn)
}

// Dialect returns the modelsql dialect used to rebind statements for the
// configured driver.
func (c Config) Dialect() (modelsql.Dialect, error) {
	switch c.Driver {
	case DriverPgx, DriverPostgres:
		return modelsql.Postgres, nil
	case DriverMySQL:
		return modelsql.MySQL, nil
	case DriverSQLite:
		return modelsql.SQLite, nil
	}
	return modelsql.SQLite, fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
}

// ConnString returns the driver-specific data source name.
func (c Config) ConnString() (string, error) {
	if c.DSN != "" {
		if _, err := c.Dialect(); err != nil {
			return "", err
		}
		return c.DSN, nil
	}

	switch c.Driver {
	case DriverPgx, DriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   hostPort(c.Host, c.Port, "5432"),
			Path:   "/" + c.Database,
		}
		params := url.Values{}
		params.Set("sslmode", "disable")
		for k, v := range c.Params {
			params.Set(k, v)
		}
		u.RawQuery = params.Encode()
		return u.String(), nil

	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = hostPort(c.Host, c.Port, "3306")
		mc.DBName = c.Database
		if len(c.Params) > 0 {
			mc.Params = make(map[string]string, len(c.Params))
			for k, v := range c.Params {
				mc.Params[k] = v
			}
		}
		return mc.FormatDSN(), nil

	case DriverSQLite:
		name := c.Database
		if name == "" {
			name = ":memory:"
		}
		if len(c.Params) == 0 {
			return name, nil
		}
		keys := make([]string, 0, len(c.Params))
		for k := range c.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var q []string
		for _, k := range keys {
			q = append(q, url.QueryEscape(k)+"="+url.QueryEscape(c.Params[k]))
		}
		return "file:" + name + "?" + strings.Join(q, "&"), nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
}

func hostPort(host, port, defaultPort string) string {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = defaultPort
	}
	return host + ":" + port
}
