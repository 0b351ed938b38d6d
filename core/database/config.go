package database

import (
	"fmt"
	"strings"
)

const (
	// DriverSQLite selects the file-backed SQLite store.
	DriverSQLite = "sqlite"
	// DriverPostgres selects a PostgreSQL server.
	DriverPostgres = "postgres"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver string `yaml:"driver" envconfig:"DB_DRIVER"`
	// Path is the SQLite database file; created on first run.
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Normalize applies defaults and validates the selected driver.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" || c.Driver == "sqlite3" {
		c.Driver = DriverSQLite
	}
	switch c.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			c.Path = "data/recipes.db"
		}
		// A single writer avoids SQLITE_BUSY between pooled connections.
		c.MaxConnections = 1
	case DriverPostgres:
		if strings.TrimSpace(c.Host) == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.MaxConnections <= 0 {
			c.MaxConnections = 5
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: sqlite, postgres", c.Driver)
	}
	return nil
}

// DSN returns the driver-specific data source name.
func (c Config) DSN() string {
	if c.Driver == DriverPostgres {
		return fmt.Sprintf(
			"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
		)
	}
	return c.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
}

// Target describes the database for logs without credentials.
func (c Config) Target() string {
	if c.Driver == DriverPostgres {
		return c.Host + ":" + c.Port + "/" + c.Name
	}
	return c.Path
}
