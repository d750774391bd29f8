// Package config loads the database connection settings of the CLI.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/nxtgo/nxt-orm/dialect"
)

// AppFs is the filesystem config files and .env files are read from.
var AppFs = afero.NewOsFs()

// fromEnvFile records the variables exported by a previous load so a reload
// picks up edits to .env.
var fromEnvFile = make(map[string]bool)

const (
	configName = ".nxt-orm"
	envPrefix  = "NXT_ORM"
)

// Config holds the connection settings.
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Debug    bool
	// DatabaseURL is a full DSN taking precedence over the other fields.
	DatabaseURL string
	// File is the config file that was read, empty when none was found.
	File string
}

// LoadConfig reads configFile, or .nxt-orm.yaml from the working directory,
// the home directory or ~/.config/nxt-orm when configFile is empty.
// NXT_ORM_* variables, loaded from .env and .env.local when present,
// override the file.
func LoadConfig(configFile string) (*Config, error) {
	if err := loadEnvFile(".env", false); err != nil {
		return nil, err
	}
	if err := loadEnvFile(".env.local", true); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(AppFs)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "nxt-orm"))
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("driver", dialect.MySQLName)
	v.SetDefault("host", "localhost")
	v.SetDefault("sslmode", "disable")
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Driver:      v.GetString("driver"),
		Host:        v.GetString("host"),
		Port:        v.GetInt("port"),
		User:        v.GetString("user"),
		Password:    v.GetString("password"),
		Database:    v.GetString("database"),
		SSLMode:     v.GetString("sslmode"),
		Debug:       v.GetBool("debug"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		File:        v.ConfigFileUsed(),
	}
	if cfg.DatabaseURL != "" && isPostgresURL(cfg.DatabaseURL) {
		cfg.Driver = dialect.PostgresName
	}
	return cfg, nil
}

// loadEnvFile exports the variables of name. Variables set by the
// environment are kept unless overload is set.
func loadEnvFile(name string, overload bool) error {
	f, err := AppFs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	for key, value := range vars {
		if _, set := os.LookupEnv(key); set && !overload && !fromEnvFile[key] {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
		fromEnvFile[key] = true
	}
	return nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Validate rejects settings no connection can be opened with.
func (c *Config) Validate() error {
	if _, err := dialect.ForDriver(c.Driver, c.Database); err != nil {
		return err
	}
	if c.DatabaseURL == "" && c.Database == "" {
		return dialect.NewConfigError("Config", "a database name is required")
	}
	return nil
}

// Dialect returns the dialect of the configured driver.
func (c *Config) Dialect() (*dialect.Dialect, error) {
	return dialect.ForDriver(c.Driver, c.Database)
}

func (c *Config) port(d *dialect.Dialect) int {
	if c.Port != 0 {
		return c.Port
	}
	if d.Name == dialect.PostgresName {
		return 5432
	}
	return 3306
}

// DSN returns the data source name for the configured driver. MySQL DSNs
// enable multi-statements so a plan can be sent in one call.
func (c *Config) DSN() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}

	d, err := c.Dialect()
	if err != nil {
		return "", err
	}
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.port(d)))

	if d.Name == dialect.PostgresName {
		u := url.URL{
			Scheme:   "postgres",
			Host:     addr,
			Path:     "/" + c.Database,
			RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
		}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Password)
		}
		return u.String(), nil
	}

	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = addr
	mc.DBName = c.Database
	mc.MultiStatements = true
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}

// SaveConfig writes cfg to ~/.config/nxt-orm/.nxt-orm.yaml and returns the path.
func SaveConfig(cfg *Config) (string, error) {
	v := viper.New()
	v.SetFs(AppFs)
	v.Set("driver", cfg.Driver)
	v.Set("host", cfg.Host)
	v.Set("port", cfg.Port)
	v.Set("user", cfg.User)
	v.Set("password", cfg.Password)
	v.Set("database", cfg.Database)
	v.Set("sslmode", cfg.SSLMode)
	v.Set("debug", cfg.Debug)

	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(home, ".config", "nxt-orm")
	if err := AppFs.MkdirAll(configPath, 0755); err != nil {
		return "", err
	}

	configFile := filepath.Join(configPath, configName+".yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return configFile, nil
}
