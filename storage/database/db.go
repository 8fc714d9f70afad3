package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/fs"
)

// SQL engines
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

var ErrUnsupportedEngine = errors.New("unsupported database engine")

// IsSQL reports whether engine is served by this package.
func IsSQL(engine string) bool {
	switch engine {
	case Postgres, MySQL, SQLite:
		return true
	}
	return false
}

func postgresDSN(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   Postgres,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func mysqlDSN(conf *core.Config) string {
	cfg := mysql.NewConfig()
	cfg.User = conf.Database.User
	cfg.Passwd = conf.Database.Password
	cfg.Net = "tcp"
	cfg.Addr = conf.Database.Address()
	cfg.DBName = conf.Database.Name
	cfg.ParseTime = true
	cfg.ClientFoundRows = true // UPDATE reports matched rows
	cfg.Loc = time.UTC
	if !conf.Database.DisableTLS {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}

func sqliteDSN(conf *core.Config) string {
	dsn := conf.Database.Name
	if !strings.HasSuffix(dsn, ".db") {
		dsn += ".db"
	}
	return "file:" + dsn
}

// withSQLitePragmas enables foreign keys and waits on locked databases.
func withSQLitePragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	engine := conf.Database.Engine
	dsn := conf.Database.DSN

	switch engine {
	case Postgres:
		if dsn == "" || admin {
			dsn = postgresDSN(dbName, admin, conf)
		}
	case MySQL:
		if dsn == "" {
			dsn = mysqlDSN(conf)
		}
	case SQLite:
		if dsn == "" {
			dsn = sqliteDSN(conf)
		}
		dsn = withSQLitePragmas(dsn)
	default:
		return nil, errors.Wrap(ErrUnsupportedEngine, engine)
	}

	db, err := sqlx.Open(engine, dsn)
	if err != nil {
		return nil, err
	}
	if engine == SQLite {
		db.SetMaxOpenConns(1) // sqlite allows a single writer
	}
	return db, nil
}

// Open opens the application database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	// check if app user exists
	var exists bool
	if err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", conf.Database.User); err != nil {
		return errors.Wrap(err, "checking app user")
	}

	// create app user if not exist
	if !exists {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err := db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	// check if DB exists
	var exists bool
	if err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", conf.Database.Name); err != nil {
		return errors.Wrap(err, "checking DB")
	}

	// create DB if not exist
	if !exists {
		if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres app user and database. Other engines are left untouched.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine != Postgres || conf.Database.DSN != "" {
		return nil
	}

	// connect as admin
	db, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db.DB); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()

	if err = createDB(appDB, conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// MigrationsDir returns the embedded migrations directory of the engine.
func MigrationsDir(engine string) string {
	return path.Join("migrations", engine)
}

// SetupGoose points goose at the embedded migrations of the engine.
func SetupGoose(engine string) error {
	dialect := engine
	if engine == SQLite {
		dialect = "sqlite3"
	}
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "setting migrations dialect")
	}
	return nil
}

// Migrate applies all pending migrations.
func Migrate(db *sqlx.DB, engine string) error {
	if err := SetupGoose(engine); err != nil {
		return err
	}
	if err := goose.Up(db.DB, MigrationsDir(engine)); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
