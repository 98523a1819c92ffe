package mongo

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrConfParamMissing = fmt.Errorf("configuration parameter missing")

const (
	DefaultPort   = "27017"
	DefaultDBName = "railwatch"

	serverSelectionTimeout = 5 * time.Second
)

type Config struct {
	Host   string
	Port   string
	DBName string
	User   string
	Pass   string
}

// ConfigFromEnv reads MONGO_* variables. MONGO_HOST is required; MONGO_PORT
// falls back to DefaultPort and MONGO_DB_NAME to dbName, or DefaultDBName when
// dbName is empty. Credentials are used only when both MONGO_USER and
// MONGO_PASS are set.
func ConfigFromEnv(dbName string) (*Config, error) {
	if dbName == "" {
		dbName = DefaultDBName
	}

	conf := Config{
		Host:   os.Getenv("MONGO_HOST"),
		Port:   os.Getenv("MONGO_PORT"),
		DBName: os.Getenv("MONGO_DB_NAME"),
		User:   os.Getenv("MONGO_USER"),
		Pass:   os.Getenv("MONGO_PASS"),
	}
	if conf.Host == "" {
		return nil, fmt.Errorf("%w: MONGO_HOST", ErrConfParamMissing)
	}
	if conf.Port == "" {
		conf.Port = DefaultPort
	}
	if conf.DBName == "" {
		conf.DBName = dbName
	}

	return &conf, nil
}

func (c *Config) conString() string {
	if c.User != "" && c.Pass != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s/", c.User, c.Pass, c.Host, c.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s/", c.Host, c.Port)
}

// String describes the connection without the password.
func (c Config) String() string {
	c.Pass = strings.Repeat("*", len([]rune(c.Pass)))
	return fmt.Sprintf("%s:%s/%s (user %q, pass %q)", c.Host, c.Port, c.DBName, c.User, c.Pass)
}

// Options returns client options for the analyses store. Server selection
// gives up after a few seconds so an unreachable instance fails fast at startup.
func (c *Config) Options() *options.ClientOptions {
	return options.Client().
		ApplyURI(c.conString()).
		SetAppName(DefaultDBName).
		SetServerSelectionTimeout(serverSelectionTimeout)
}
