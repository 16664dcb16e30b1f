package storage

import (
	"fmt"

	"github.com/absmach/flcoord/pkg/storage/badger"
	"github.com/absmach/flcoord/pkg/storage/postgres"
	"github.com/absmach/flcoord/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"FLCOORD_STORAGE_TYPE" envDefault:"file"`

	FileDir string `env:"FLCOORD_FILE_DIR" envDefault:"./data/server"`

	PostgresHost    string `env:"FLCOORD_POSTGRES_HOST"    envDefault:"localhost"`
	PostgresPort    string `env:"FLCOORD_POSTGRES_PORT"    envDefault:"5432"`
	PostgresUser    string `env:"FLCOORD_POSTGRES_USER"    envDefault:"flcoord"`
	PostgresPass    string `env:"FLCOORD_POSTGRES_PASS"    envDefault:"flcoord"`
	PostgresDB      string `env:"FLCOORD_POSTGRES_DB"      envDefault:"flcoord"`
	PostgresSSLMode string `env:"FLCOORD_POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"FLCOORD_SQLITE_PATH" envDefault:"./data/flcoord.db"`

	BadgerPath string `env:"FLCOORD_BADGER_PATH" envDefault:"./data/badger"`
}

// NewStorage opens the snapshot backend selected by cfg.Type.
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "postgres":
		db, err := postgres.NewDatabase(
			cfg.PostgresHost,
			cfg.PostgresPort,
			cfg.PostgresUser,
			cfg.PostgresPass,
			cfg.PostgresDB,
			cfg.PostgresSSLMode,
		)
		if err != nil {
			return nil, err
		}

		return db, nil
	case "sqlite":
		db, err := sqlite.NewDatabase(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}

		return db, nil
	case "badger":
		db, err := badger.NewDatabase(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}

		return db, nil
	case "file":
		return NewFileStorage(cfg.FileDir)
	case "memory":
		return NewInMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}
