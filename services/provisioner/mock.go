package provisionsvc

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
)

var ErrSimulatedFailure = errors.New("simulated provisioning failure")

type mockProvisioner struct {
	minDelay  time.Duration
	maxDelay  time.Duration
	errorRate float64

	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
}

var _ course.Provisioner = (*mockProvisioner)(nil)

// NewMockProvisioner simulates resource creation: it waits a random delay in [minDelay, maxDelay]
// and fails with probability errorRate.
func NewMockProvisioner(minDelay, maxDelay time.Duration, errorRate float64) course.Provisioner {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &mockProvisioner{
		minDelay:  minDelay,
		maxDelay:  maxDelay,
		errorRate: errorRate,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

func (p *mockProvisioner) draw() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delay := p.minDelay
	if span := p.maxDelay - p.minDelay; span > 0 {
		delay += time.Duration(p.rand.Int63n(int64(span) + 1))
	}
	return delay, p.rand.Float64() < p.errorRate
}

func (p *mockProvisioner) CreateResource(ctx context.Context, c course.Course, t course.ResourceType) (string, error) {
	delay, fail := p.draw()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", core.NewTransportError(fmt.Sprintf("creating %s for course %s", t, c.ID), ctx.Err())
	case <-timer.C:
	}

	if fail {
		return "", core.NewTransportError(fmt.Sprintf("creating %s for course %s", t, c.ID), ErrSimulatedFailure)
	}
	return fmt.Sprintf("mock-%s-%d", t, p.now().UnixMilli()), nil
}
