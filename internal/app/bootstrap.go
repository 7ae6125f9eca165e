package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/db"
	"github.com/router-for-me/BizCardCloud/internal/security"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Database types accepted by InitOptions.
const (
	DatabaseFile     = "file"
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
	DatabaseMySQL    = "mysql"
)

const defaultSQLitePath = "bizcard.db"

// ErrConfigExists is returned by Init when the config file is already present.
var ErrConfigExists = errors.New("config file already exists")

// InitOptions describes the storage and listener written to a fresh config file.
type InitOptions struct {
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     int
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabasePath     string
	DatabaseSSLMode  string
	DataDir          string
	ServerPort       int
}

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// BuildDSN builds a database DSN from the options. The file backend has no DSN.
func BuildDSN(opts InitOptions) (string, error) {
	switch strings.ToLower(strings.TrimSpace(opts.DatabaseType)) {
	case "", DatabaseFile:
		return "", nil
	case DatabasePostgres:
		sslMode := opts.DatabaseSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			opts.DatabaseUser,
			opts.DatabasePassword,
			opts.DatabaseHost,
			opts.DatabasePort,
			opts.DatabaseName,
			sslMode,
		), nil
	case DatabaseMySQL:
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			opts.DatabaseUser,
			opts.DatabasePassword,
			opts.DatabaseHost,
			opts.DatabasePort,
			opts.DatabaseName,
		), nil
	case DatabaseSQLite:
		path := strings.TrimSpace(opts.DatabasePath)
		if path == "" {
			path = defaultSQLitePath
		}
		return db.BuildSQLiteDSN(path), nil
	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

// TestDatabaseConnection validates that the DSN can connect and ping.
func TestDatabaseConnection(ctx context.Context, dsn string) error {
	conn, err := db.OpenContext(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if errClose := db.Close(conn); errClose != nil {
		log.Errorf("sql db close error: %v", errClose)
	}
	return nil
}

// validateInitOptions normalizes and validates init options.
func validateInitOptions(opts *InitOptions) error {
	dbType := strings.ToLower(strings.TrimSpace(opts.DatabaseType))
	if dbType == "" {
		dbType = DatabaseFile
	}
	opts.DatabaseType = dbType

	switch dbType {
	case DatabasePostgres, DatabaseMySQL:
		if strings.TrimSpace(opts.DatabaseHost) == "" {
			return fmt.Errorf("database host is required")
		}
		if opts.DatabasePort <= 0 {
			if dbType == DatabasePostgres {
				opts.DatabasePort = 5432
			} else {
				opts.DatabasePort = 3306
			}
		}
		if strings.TrimSpace(opts.DatabaseUser) == "" {
			return fmt.Errorf("database username is required")
		}
		if strings.TrimSpace(opts.DatabaseName) == "" {
			return fmt.Errorf("database name is required")
		}
	case DatabaseSQLite:
		if strings.TrimSpace(opts.DatabasePath) == "" {
			opts.DatabasePath = defaultSQLitePath
		}
	case DatabaseFile:
		if strings.TrimSpace(opts.DataDir) == "" {
			opts.DataDir = "./data"
		}
	default:
		return fmt.Errorf("unsupported database type %q", opts.DatabaseType)
	}
	if opts.ServerPort < 0 || opts.ServerPort > 65535 {
		return fmt.Errorf("invalid port: %d", opts.ServerPort)
	}
	return nil
}

// configFile maps YAML fields for the generated config file.
type configFile struct {
	DatabaseDSN string     `yaml:"database-dsn,omitempty"`
	Storage     storageCfg `yaml:"storage,omitempty"`
	Server      serverCfg  `yaml:"server"`
	JWT         jwtCfg     `yaml:"jwt"`
	Logging     loggingCfg `yaml:"logging"`
}

type storageCfg struct {
	DataDir string `yaml:"data-dir,omitempty"`
}

type serverCfg struct {
	Port int `yaml:"port"`
}

// jwtCfg holds JWT settings for the generated config file.
type jwtCfg struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

type loggingCfg struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// generateJWTSecret creates a random JWT secret string.
func generateJWTSecret() (string, error) {
	secret, err := security.GenerateRandomString(32)
	if err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return secret, nil
}

// WriteConfigFile writes the initial config file to disk.
func WriteConfigFile(configPath string, dsn string, dataDir string, port int) error {
	secret, err := generateJWTSecret()
	if err != nil {
		return err
	}
	cfg := configFile{
		DatabaseDSN: dsn,
		Server:      serverCfg{Port: port},
		JWT: jwtCfg{
			Secret: secret,
			Expiry: "720h",
		},
		Logging: loggingCfg{Level: "info", Format: "text"},
	}
	if dsn == "" {
		cfg.Storage.DataDir = dataDir
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}

	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}

	return nil
}

// Init writes a fresh config file after checking that the chosen database is reachable.
func Init(ctx context.Context, cfg config.AppConfig, opts InitOptions) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	if ConfigExists(configPath) {
		return fmt.Errorf("%w: %s", ErrConfigExists, configPath)
	}
	if errValidate := validateInitOptions(&opts); errValidate != nil {
		return errValidate
	}
	dsn, err := BuildDSN(opts)
	if err != nil {
		return err
	}
	if dsn != "" {
		if errTest := TestDatabaseConnection(ctx, dsn); errTest != nil {
			return errTest
		}
	}
	if errWrite := WriteConfigFile(configPath, dsn, opts.DataDir, opts.ServerPort); errWrite != nil {
		return errWrite
	}
	log.WithFields(log.Fields{"config": configPath, "storage": opts.DatabaseType}).Info("config file written")
	return nil
}
