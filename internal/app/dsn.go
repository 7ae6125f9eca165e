package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// dsnInfo is the non-secret part of a database DSN.
type dsnInfo struct {
	Type        string
	Host        string
	Port        int
	User        string
	Name        string
	SSLMode     string
	Path        string
	PasswordSet bool
}

// String renders the DSN without its password.
func (d dsnInfo) String() string {
	switch d.Type {
	case "sqlite":
		return "sqlite:" + d.Path
	case "postgres":
		return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s", d.User, d.Host, d.Port, d.Name, d.SSLMode)
	default:
		return fmt.Sprintf("%s://%s@%s:%d/%s", d.Type, d.User, d.Host, d.Port, d.Name)
	}
}

func parseDSN(dsn string) (dsnInfo, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return dsnInfo{}, fmt.Errorf("empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lowered, "file:"), strings.HasPrefix(lowered, "sqlite://"):
		pathPart := trimmed[strings.Index(trimmed, ":")+1:]
		pathPart = strings.TrimPrefix(pathPart, "//")
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return dsnInfo{Type: "sqlite", Path: strings.TrimSpace(pathPart)}, nil
	case strings.HasSuffix(lowered, ".db"), strings.HasSuffix(lowered, ".sqlite"), strings.HasSuffix(lowered, ".sqlite3"):
		return dsnInfo{Type: "sqlite", Path: trimmed}, nil
	case strings.HasPrefix(lowered, "mysql://"), strings.Contains(lowered, "@tcp("), strings.Contains(lowered, "@unix("):
		return parseMySQLDSN(trimmed)
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return dsnInfo{}, fmt.Errorf("parse dsn: %w", errParse)
	}

	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		port := 5432
		if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
			parsedPort, errPort := strconv.Atoi(rawPort)
			if errPort != nil {
				return dsnInfo{}, fmt.Errorf("parse port: %w", errPort)
			}
			port = parsedPort
		}

		username := ""
		passwordSet := false
		if u.User != nil {
			username = strings.TrimSpace(u.User.Username())
			_, passwordSet = u.User.Password()
		}

		sslMode := strings.TrimSpace(u.Query().Get("sslmode"))
		if sslMode == "" {
			sslMode = "disable"
		}

		return dsnInfo{
			Type:        "postgres",
			Host:        strings.TrimSpace(u.Hostname()),
			Port:        port,
			User:        username,
			Name:        strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
			SSLMode:     sslMode,
			PasswordSet: passwordSet,
		}, nil
	default:
		return dsnInfo{}, fmt.Errorf("unsupported dsn scheme")
	}
}

func parseMySQLDSN(dsn string) (dsnInfo, error) {
	if strings.HasPrefix(strings.ToLower(dsn), "mysql://") {
		dsn = dsn[len("mysql://"):]
	}
	parsed, errParse := mysql.ParseDSN(dsn)
	if errParse != nil {
		return dsnInfo{}, fmt.Errorf("parse mysql dsn: %w", errParse)
	}
	host, port := parsed.Addr, 3306
	if h, p, ok := strings.Cut(parsed.Addr, ":"); ok {
		host = h
		if parsedPort, errPort := strconv.Atoi(p); errPort == nil {
			port = parsedPort
		}
	}
	return dsnInfo{
		Type:        "mysql",
		Host:        host,
		Port:        port,
		User:        parsed.User,
		Name:        parsed.DBName,
		PasswordSet: parsed.Passwd != "",
	}, nil
}

// describeDSN returns a loggable form of dsn with the password removed.
func describeDSN(dsn string) string {
	info, err := parseDSN(dsn)
	if err != nil {
		return "unparsed"
	}
	return info.String()
}
