package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/coreymead/zoom-class-builder/apps/api/echo"
	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
	emailsvc "github.com/coreymead/zoom-class-builder/services/email"
	logsvc "github.com/coreymead/zoom-class-builder/services/logger"
	provisionsvc "github.com/coreymead/zoom-class-builder/services/provisioner"
	queuesvc "github.com/coreymead/zoom-class-builder/services/queue"
	"github.com/coreymead/zoom-class-builder/storage"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(!conf.Debug)

	// set up storage
	repo, closer, err := storage.NewCourseRepository(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = closer.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing storage: %v", err), err)
		}
	}()

	// set up services
	mailSvc := emailsvc.NewEmailService(conf, logger)

	provisioner, err := provisionsvc.NewProvisioner(conf.Provisioner)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up provisioner: %v", err), err)
	}

	tasks, err := queuesvc.NewClient(conf.Queue)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up queue: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	courseSvc := course.NewService(course.ServiceDeps{
		Logger:      logger,
		Repo:        repo,
		Provisioner: provisioner,
		MailSvc:     mailSvc,
		Validate:    validate,
		Translator:  translator,
	})

	// =========================================================================
	// Start Provisioning Workers

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if tasks != nil {
		defer func() { _ = tasks.Close() }()

		worker := queuesvc.NewWorker(courseSvc, tasks, logger, conf.Queue.Workers)
		if err = worker.Start(workerCtx); err != nil {
			logger.Fatal(fmt.Sprintf("starting workers: %v", err), err)
		}
		logger.Info(fmt.Sprintf("%d provisioning worker(s) started on %q queue", conf.Queue.Workers, conf.Queue.Kind))
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("engine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			CourseSvc:  courseSvc,
			Tasks:      tasks,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
