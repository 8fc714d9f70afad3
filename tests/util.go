package testutil

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
	emailsvc "github.com/coreymead/zoom-class-builder/services/email"
	logsvc "github.com/coreymead/zoom-class-builder/services/logger"
	"github.com/coreymead/zoom-class-builder/storage/database"
)

var parseTemplatesOnce sync.Once

// NewConfig returns a test configuration backed by the in-memory store.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:  "Zoom Class Builder",
		Env:      "TEST",
		TestMode: true,
		Server: core.ServerConfig{
			ShutdownTimeout: time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: core.DatabaseConfig{Engine: "memory"},
		Email:    core.EmailConfig{From: "Zoom Class Builder <noreply@test.cd>"},
	}
}

// NewLogger returns a logger with Rollbar disabled and no output.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(io.Discard, NewConfig())
	logger.Enable(false)
	return logger
}

func NewValidate() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	return validate, translator
}

// NewMailService returns the synchronous console mock; sent messages land in emailsvc.SentMessages.
func NewMailService() core.EmailService {
	logger := NewLogger()
	parseTemplatesOnce.Do(func() { core.ParseEmailTemplates(logger) })
	return emailsvc.NewConsoleServiceMock(NewConfig(), logger)
}

// NewCourseService wires a course service on top of repo.
func NewCourseService(repo course.Repository, prov course.Provisioner) course.Service {
	validate, translator := NewValidate()
	return course.NewService(course.ServiceDeps{
		Logger:      NewLogger(),
		Repo:        repo,
		Provisioner: prov,
		MailSvc:     NewMailService(),
		Validate:    validate,
		Translator:  translator,
	})
}

// OpenSQLite opens a migrated sqlite database living in a temporary directory.
func OpenSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := NewConfig()
	conf.Database.Engine = database.SQLite
	conf.Database.Name = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenSQLite(): %v", err)
	}
	if err = database.Migrate(db, database.SQLite); err != nil {
		t.Fatalf("OpenSQLite(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateCourse stores a course directly through the repository.
func CreateCourse(
	t *testing.T,
	repo course.Repository,
	id, name, description string,
	start, end course.Date,
	createdAt ...time.Time,
) course.Course {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	c := course.Course{
		ID:          id,
		Name:        name,
		Description: description,
		StartDate:   start,
		EndDate:     end,
		Users:       []course.User{},
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	c, err := repo.CreateCourse(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return c
}

// StubProvisioner hands out sequential resource IDs. It fails for the resource types listed in FailOn,
// or for every call when Err is set. Block, when set, must be fed before a call returns.
type StubProvisioner struct {
	mu     sync.Mutex
	calls  int
	Err    error
	FailOn map[course.ResourceType]bool
	Block  chan struct{}
}

var _ course.Provisioner = (*StubProvisioner)(nil)

func (p *StubProvisioner) CreateResource(ctx context.Context, c course.Course, t course.ResourceType) (string, error) {
	if p.Block != nil {
		select {
		case <-p.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err != nil {
		return "", p.Err
	}
	if p.FailOn[t] {
		return "", core.NewTransportError(fmt.Sprintf("creating %s", t), fmt.Errorf("stub failure"))
	}
	return fmt.Sprintf("%s-%s-%d", t, c.ID, p.calls), nil
}

func (p *StubProvisioner) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
