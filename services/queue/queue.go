package queuesvc

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
)

var (
	ErrClosed     = errors.New("queue closed")
	ErrInvalidJob = errors.New("invalid job")
)

// Client publishes and consumes provisioning jobs.
type Client interface {
	Publish(ctx context.Context, job string) error
	Consume(ctx context.Context) (<-chan string, error)
	Close() error
}

// Job asks for the provisioning of one resource of a course.
type Job struct {
	CourseID string
	Type     course.ResourceType
}

func (j Job) String() string {
	return j.CourseID + ":" + string(j.Type)
}

// ParseJob decodes a job published as "<courseID>:<type>".
func ParseJob(s string) (Job, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return Job{}, errors.Wrap(ErrInvalidJob, s)
	}
	rt, err := course.ParseResourceType(s[idx+1:])
	if err != nil {
		return Job{}, errors.Wrap(ErrInvalidJob, s)
	}
	return Job{CourseID: s[:idx], Type: rt}, nil
}

type memoryClient struct {
	jobs      chan string
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Client = (*memoryClient)(nil)

// NewMemoryClient returns an in-process queue holding up to size pending jobs.
func NewMemoryClient(size int) Client {
	if size <= 0 {
		size = 100
	}
	return &memoryClient{
		jobs:   make(chan string, size),
		closed: make(chan struct{}),
	}
}

func (q *memoryClient) Publish(ctx context.Context, job string) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.jobs <- job:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memoryClient) Consume(ctx context.Context) (<-chan string, error) {
	select {
	case <-q.closed:
		return nil, ErrClosed
	default:
	}
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.closed:
				return
			case job := <-q.jobs:
				select {
				case out <- job:
				case <-ctx.Done():
					// put it back for another consumer
					select {
					case q.jobs <- job:
					default:
					}
					return
				}
			}
		}
	}()
	return out, nil
}

func (q *memoryClient) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

// NewClient returns the queue selected by queue.kind; nil when provisioning runs inline.
func NewClient(conf core.QueueConfig) (Client, error) {
	switch conf.Kind {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryClient(0), nil
	case "rabbitmq":
		return NewRabbitClient(conf.URL, conf.Name)
	}
	return nil, errors.Errorf("unknown queue %q", conf.Kind)
}
