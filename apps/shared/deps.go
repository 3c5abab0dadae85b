// Package shared holds the dependency setup used by both the API and the admin CLI.
package shared

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/grading"
	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/storage/database"
	"github.com/trezcool/matokeo/storage/database/inmem"
	"github.com/trezcool/matokeo/storage/database/sqlx"
)

// Storage is the configured database and its pupil repository.
// DB is nil for the in-memory engine.
type Storage struct {
	DB   *sqlx.DB
	Repo pupil.Repository
}

// OpenStorage creates (postgres), opens and migrates the configured database.
func OpenStorage(ctx context.Context, conf *core.Config) (*Storage, error) {
	if conf.Database.Engine == core.DBEngineMemory {
		mem, err := inmemdb.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening in-memory database")
		}
		return &Storage{Repo: inmemdb.NewPupilRepository(mem)}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Storage{DB: db, Repo: sqlxrepos.NewPupilRepository(db)}, nil
}

// TxDB returns the database services run their transactions on, nil when there is none.
func (s *Storage) TxDB() core.DB {
	if s.DB == nil {
		return nil
	}
	return s.DB
}

func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// LoadScale returns the grading scale file's scale, or the default one when no file is configured.
func LoadScale(conf *core.Config) (*grading.Scale, error) {
	if conf.GradingScaleFile == "" {
		return grading.DefaultScale(), nil
	}
	return grading.LoadScale(conf.GradingScaleFile)
}
