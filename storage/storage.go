package storage

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
	"github.com/coreymead/zoom-class-builder/storage/database"
	"github.com/coreymead/zoom-class-builder/storage/database/dummy"
	"github.com/coreymead/zoom-class-builder/storage/database/sqlx"
	"github.com/coreymead/zoom-class-builder/storage/firestore"
)

// Engines besides the SQL ones.
const (
	Memory    = "memory"
	Firestore = "firestore"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewCourseRepository opens the course repository of the configured engine.
// SQL databases are migrated first; every engine is seeded with the demo courses when database.seed is set.
// The returned io.Closer releases the underlying connection.
func NewCourseRepository(ctx context.Context, conf *core.Config, logger core.Logger) (course.Repository, io.Closer, error) {
	var (
		repo   course.Repository
		closer io.Closer = nopCloser{}
	)

	engine := conf.Database.Engine
	switch {
	case engine == Memory || engine == "":
		db, err := dummydb.Open()
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening memory store")
		}
		repo = dummydb.NewCourseRepository(db)

	case engine == Firestore:
		client, err := firestorerepo.NewClient(ctx, conf.Database.Firestore)
		if err != nil {
			return nil, nil, errors.Wrap(err, "creating firestore client")
		}
		repo = firestorerepo.NewCourseRepository(client, conf.Database.Firestore.Collection)
		closer = client

	case database.IsSQL(engine):
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if err = database.Migrate(db, engine); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		repo = sqlxrepos.NewCourseRepository(db)
		closer = db

	default:
		return nil, nil, errors.Wrap(database.ErrUnsupportedEngine, engine)
	}

	if conf.Database.Seed {
		n, err := course.Seed(ctx, repo)
		if err != nil {
			_ = closer.Close()
			return nil, nil, errors.Wrap(err, "seeding courses")
		}
		if n > 0 && logger != nil {
			logger.Info("seeded demo courses", map[string]interface{}{"engine": engine, "count": n})
		}
	}
	return repo, closer, nil
}
