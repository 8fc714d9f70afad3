package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/coreymead/zoom-class-builder/client"
	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
	emailsvc "github.com/coreymead/zoom-class-builder/services/email"
	logsvc "github.com/coreymead/zoom-class-builder/services/logger"
	provisionsvc "github.com/coreymead/zoom-class-builder/services/provisioner"
	"github.com/coreymead/zoom-class-builder/storage"
	"github.com/coreymead/zoom-class-builder/storage/database"
	"github.com/coreymead/zoom-class-builder/storage/database/sqlx"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()
	rlogger := logsvc.NewRollbarLogger(os.Stderr, conf)
	rlogger.Enable(!conf.Debug)
	logger = rlogger

	globals := flag.NewFlagSet("admin", flag.ExitOnError)
	apiURL := globals.String("api", "", "Work through the course API served at this URL instead of the configured database.")
	timeout := globals.Duration("timeout", 30*time.Second, "API request timeout.")
	errAndDie(globals.Parse(os.Args[1:]))

	cli := commandLine{out: os.Stdout}
	var closer io.Closer

	if *apiURL != "" {
		cl := client.New(*apiURL, *timeout)
		cli.store, cli.linker = cl, cl
	} else {
		ctx := context.Background()
		engine := conf.Database.Engine

		// SQL databases are left unmigrated; that is the job of the migrate command.
		if database.IsSQL(engine) {
			errAndDie(database.CreateIfNotExist(conf))
			db, err := database.Open(conf)
			errAndDie(err)
			cli.db, cli.engine = db.DB, engine
			cli.repo = sqlxrepos.NewCourseRepository(db)
			closer = db
		} else {
			repo, c, err := storage.NewCourseRepository(ctx, conf, logger)
			errAndDie(err)
			cli.repo, closer = repo, c
		}

		provisioner, err := provisionsvc.NewProvisioner(conf.Provisioner)
		errAndDie(err)

		validate := validator.New()
		translator := core.NewTranslator()
		core.InitValidators(validate, translator)
		course.InitValidators(validate, translator)
		core.ParseEmailTemplates(logger)

		svc := course.NewService(course.ServiceDeps{
			Logger:      logger,
			Repo:        cli.repo,
			Provisioner: provisioner,
			MailSvc:     emailsvc.NewEmailService(conf, logger),
			Validate:    validate,
			Translator:  translator,
		})
		cli.store, cli.linker = svc, svc
	}

	// start CLI
	err := cli.run(append([]string{os.Args[0]}, globals.Args()...))
	if closer != nil {
		_ = closer.Close()
	}
	if err != nil {
		if err != errHelp {
			_, _ = fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
