package config

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/litemap/lib/codec"
	"github.com/ValentinKolb/litemap/lib/db/engines"
	"github.com/ValentinKolb/litemap/lib/logging"
)

const (
	// DefaultIdentifier is the store used when none is configured
	DefaultIdentifier = "./db/litemap.db"
	// DefaultNamespace is the namespace used by the command line when none is configured
	DefaultNamespace = "records/"
	// DefaultLogLevel is the level of all litemap loggers
	DefaultLogLevel = "info"
)

// Config holds the settings of the command line tools.
// The library itself only needs a store identifier.
type Config struct {
	// Identifier of the store (path or scheme string, see engines.Open)
	Identifier string
	// Namespace prefix the record commands work on
	Namespace string
	// Codec name (jsoniter, json)
	Codec string
	// Logging configuration
	LogLevel string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Identifier: DefaultIdentifier,
		Namespace:  DefaultNamespace,
		Codec:      codec.NameJSONIter,
		LogLevel:   DefaultLogLevel,
	}
}

// Validate checks the configuration and fills empty fields with their defaults.
func (c *Config) Validate() error {
	def := Default()
	if c.Identifier == "" {
		c.Identifier = def.Identifier
	}
	if c.Namespace == "" {
		c.Namespace = def.Namespace
	}
	if c.Codec == "" {
		c.Codec = def.Codec
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	if _, err := codec.ByName(c.Codec); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	impl, location := engines.Parse(c.Identifier)

	addSection("Store")
	addField("Identifier", c.Identifier)
	addField("Engine", string(impl))
	addField("Location", location)
	addField("Namespace", c.Namespace)
	addField("Codec", c.Codec)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
