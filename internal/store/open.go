package store

import (
	"context"
	"errors"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/db"
	log "github.com/sirupsen/logrus"
)

// Open selects the storage backend. A configured DSN selects the SQL backend and an
// unreachable database is fatal; without a DSN the file backend under the data dir is used.
func Open(ctx context.Context, cfg config.Config) (Storage, error) {
	dsn, errDSN := cfg.DSN()
	if errDSN != nil {
		if !errors.Is(errDSN, config.ErrMissingDatabaseDSN) {
			return nil, errDSN
		}
		fs, errFile := NewFileStore(cfg.Storage.DataDir, cfg.Cards.Retention)
		if errFile != nil {
			return nil, errFile
		}
		log.WithField("dir", fs.Dir()).Info("store: using file backend")
		return fs, nil
	}

	conn, errOpen := db.OpenContext(ctx, dsn)
	if errOpen != nil {
		return nil, apperr.Wrap(errOpen, apperr.KindConfiguration, apperr.CodeStorageUnavailable, "store: open database")
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		_ = db.Close(conn)
		return nil, apperr.Wrap(errMigrate, apperr.KindConfiguration, apperr.CodeStorageUnavailable, "store: migrate database")
	}
	log.WithField("dialect", db.DialectName(conn)).Info("store: using sql backend")
	return NewGormStore(conn, cfg.Cards.Retention), nil
}
