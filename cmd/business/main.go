package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/router-for-me/BizCardCloud/internal/app"
	"github.com/router-for-me/BizCardCloud/internal/config"

	log "github.com/sirupsen/logrus"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if errRun := run(ctx, os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// run parses flags, loads config, and runs one of the maintenance commands or the server.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bizcard", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 0, "server port, overrides server.port")
	migrate := fs.Bool("migrate", false, "run database migrations and exit")
	migrateJSON := fs.String("migrate-json", "", "copy a file backend data directory into the configured database and exit")
	initConfig := fs.Bool("init", false, "write a new config file and exit")
	dbType := fs.String("db-type", app.DatabaseFile, "storage for -init: file, sqlite, postgres or mysql")
	dbHost := fs.String("db-host", "", "database host for -init")
	dbPort := fs.Int("db-port", 0, "database port for -init")
	dbUser := fs.String("db-user", "", "database user for -init")
	dbName := fs.String("db-name", "", "database name for -init")
	dbPath := fs.String("db-path", "", "sqlite file for -init")
	dbSSLMode := fs.String("db-sslmode", "", "postgres sslmode for -init")
	dataDir := fs.String("data-dir", "", "file backend directory for -init")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}

	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if strings.TrimSpace(*cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(*cfgPath)
	}

	switch {
	case *initConfig:
		return app.Init(ctx, appCfg, app.InitOptions{
			DatabaseType: *dbType,
			DatabaseHost: *dbHost,
			DatabasePort: *dbPort,
			DatabaseUser: *dbUser,
			// Read from the environment, never from argv.
			DatabasePassword: os.Getenv("DB_PASSWORD"),
			DatabaseName:     *dbName,
			DatabasePath:     *dbPath,
			DatabaseSSLMode:  *dbSSLMode,
			DataDir:          *dataDir,
			ServerPort:       *port,
		})
	case *migrate:
		return app.Migrate(ctx, appCfg)
	case strings.TrimSpace(*migrateJSON) != "":
		report, errMigrate := app.MigrateJSON(ctx, appCfg, strings.TrimSpace(*migrateJSON))
		if errMigrate != nil {
			return errMigrate
		}
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	return app.RunServer(ctx, appCfg, *port)
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
