package modelsql

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iancoleman/strcase"
	"gopkg.in/yaml.v3"
)

// Naming maps a Go field name to a column name for fields without a tag.
type Naming int

const (
	// NamingField keeps the field name as declared.
	NamingField Naming = iota
	// NamingSnake converts "AccountID" to "account_id".
	NamingSnake
	// NamingLowerCamel converts "AccountID" to "accountId".
	NamingLowerCamel
)

var ErrUnknownNaming = errors.New("modelsql: unknown naming strategy")

func (n Naming) String() string {
	switch n {
	case NamingSnake:
		return "snake"
	case NamingLowerCamel:
		return "lower_camel"
	default:
		return "field"
	}
}

// Column returns the column name for the Go field name under this strategy.
func (n Naming) Column(field string) string {
	switch n {
	case NamingSnake:
		return strcase.ToSnake(field)
	case NamingLowerCamel:
		return strcase.ToLowerCamel(field)
	default:
		return field
	}
}

// UnmarshalText lets a Naming be read from configuration files.
func (n *Naming) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "field":
		*n = NamingField
	case "snake", "snake_case":
		*n = NamingSnake
	case "lower_camel", "camel":
		*n = NamingLowerCamel
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNaming, text)
	}
	return nil
}

// LoadConfig reads a YAML converter configuration. Unknown keys are rejected.
//
//	dialect: postgres
//	tag: db
//	naming: snake
//	system_fields: [serialVersionUID, Version]
func LoadConfig(r io.Reader) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("modelsql: read config: %w", err)
	}
	return defaultConfig(c), nil
}

// configSignature identifies the parts of a Config that change field plans.
func configSignature(c Config) string {
	const sep = "\x1f" // unit separator; unlikely to appear in names
	var b strings.Builder
	b.WriteString(c.Tag)
	b.WriteString(sep)
	b.WriteString(c.Naming.String())
	for _, f := range c.SystemFields {
		b.WriteString(sep)
		b.WriteString(strings.ToLower(f))
	}
	return b.String()
}
