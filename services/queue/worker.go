package queuesvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
)

// Provisioner is the part of course.Service the worker drives.
type Provisioner interface {
	ProvisionResource(ctx context.Context, courseID string, t course.ResourceType) (course.Course, error)
}

// Worker consumes provisioning jobs with a pool of goroutines.
type Worker struct {
	svc        Provisioner
	qclient    Client
	logger     core.Logger
	workerPool int
	wg         sync.WaitGroup
}

func NewWorker(svc Provisioner, q Client, logger core.Logger, pool int) *Worker {
	if pool <= 0 {
		pool = 1
	}
	return &Worker{svc: svc, qclient: q, logger: logger, workerPool: pool}
}

// Start launches the pool; workers stop when ctx is cancelled or the queue is closed.
func (w *Worker) Start(ctx context.Context) error {
	for i := 0; i < w.workerPool; i++ {
		msgs, err := w.qclient.Consume(ctx)
		if err != nil {
			return errors.Wrapf(err, "worker %d consuming", i)
		}

		w.wg.Add(1)
		go func(idx int, msgs <-chan string) {
			defer w.wg.Done()
			w.logger.Debug(fmt.Sprintf("worker %d started", idx))
			for {
				select {
				case <-ctx.Done():
					w.logger.Debug(fmt.Sprintf("worker %d stopping", idx))
					return
				case job, ok := <-msgs:
					if !ok {
						w.logger.Debug(fmt.Sprintf("worker %d: jobs channel closed", idx))
						return
					}
					w.process(job)
				}
			}
		}(i, msgs)
	}
	return nil
}

// Wait blocks until every worker has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// process runs with its own context: a started provisioning is not cancelled.
func (w *Worker) process(raw string) {
	job, err := ParseJob(raw)
	if err != nil {
		w.logger.Error(fmt.Sprintf("dropping job %q", raw), err)
		return
	}
	if _, err = w.svc.ProvisionResource(context.Background(), job.CourseID, job.Type); err != nil {
		// the slot already reflects the failure
		w.logger.Warn(fmt.Sprintf("job %s failed: %v", job, err))
		return
	}
	w.logger.Info(fmt.Sprintf("job %s done", job))
}
