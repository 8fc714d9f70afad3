package course

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
)

var (
	ErrResourcePending    = errors.New("resource initialization already in progress")
	ErrResourceNotPending = errors.New("resource is not pending initialization")
	ErrNoCourses          = errors.New("no courses selected")
)

// BulkResult reports the progress of a bulk operation.
type BulkResult struct {
	Completed []string `json:"completed"`
	Skipped   []string `json:"skipped"`
	Failed    string   `json:"failed,omitempty"`
	Remaining []string `json:"remaining"`
}

func newBulkResult() BulkResult {
	return BulkResult{Completed: []string{}, Skipped: []string{}, Remaining: []string{}}
}

// BulkError is returned when a bulk operation stops on a failing course.
// The courses listed in Remaining were left untouched.
type BulkError struct {
	CourseID  string
	Remaining []string
	Err       error
}

func (err *BulkError) Error() string {
	return fmt.Sprintf("course %s: %v (%d remaining course(s) untouched)", err.CourseID, err.Err, len(err.Remaining))
}

func (err *BulkError) Cause() error  { return err.Err }
func (err *BulkError) Unwrap() error { return err.Err }

func (svc *service) InitializeResource(ctx context.Context, courseID string, t ResourceType) (Course, error) {
	if _, err := svc.BeginResource(ctx, courseID, t); err != nil {
		return Course{}, err
	}
	return svc.ProvisionResource(ctx, courseID, t)
}

// BeginResource marks the resource as pending. Initializing a resource that is already pending is rejected.
func (svc *service) BeginResource(ctx context.Context, courseID string, t ResourceType) (Course, error) {
	t, err := ParseResourceType(string(t))
	if err != nil {
		return Course{}, err
	}
	return svc.mutate(ctx, courseID, func(c *Course) error {
		if c.ZoomResources == nil {
			c.ZoomResources = NewZoomResources()
		}
		slot := c.ZoomResources.Slot(t)
		if slot.Status == StatusPending {
			return core.NewValidationError(ErrResourcePending, core.FieldError{Field: "status", Error: ErrResourcePending.Error()})
		}
		slot.pending()
		return nil
	})
}

// ProvisionResource creates the external resource of a pending slot and records the outcome.
// The course lock is not held while the provisioner runs.
func (svc *service) ProvisionResource(ctx context.Context, courseID string, t ResourceType) (Course, error) {
	t, err := ParseResourceType(string(t))
	if err != nil {
		return Course{}, err
	}
	c, err := svc.Repo.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if c.ZoomResources == nil || c.ZoomResources.Slot(t) == nil || c.ZoomResources.Slot(t).Status != StatusPending {
		return Course{}, core.NewValidationError(ErrResourceNotPending)
	}

	resourceID, provErr := svc.Provisioner.CreateResource(ctx, c, t)
	if provErr == nil && !ValidResourceID(resourceID) {
		provErr = errors.Wrapf(ErrInvalidResourceID, "provisioner returned %q", resourceID)
	}
	if provErr != nil && !core.IsTransport(provErr) {
		provErr = core.NewTransportError(fmt.Sprintf("creating %s resource", t), provErr)
	}

	c, err = svc.mutate(ctx, courseID, func(c *Course) error {
		if c.ZoomResources == nil {
			return nil // unlinked meanwhile
		}
		slot := c.ZoomResources.Slot(t)
		if slot.Status != StatusPending {
			return nil // superseded by a link or an unlink
		}
		if provErr != nil {
			slot.failed()
		} else {
			slot.created(resourceID)
		}
		return nil
	})
	if err != nil {
		return Course{}, errors.Wrap(err, "saving resource status")
	}
	if provErr != nil {
		svc.logError(fmt.Sprintf("initializing %s resource of course %s", t, courseID), provErr)
		return Course{}, provErr
	}
	return c, nil
}

func (svc *service) FailResource(ctx context.Context, courseID string, t ResourceType, cause error) (Course, error) {
	t, err := ParseResourceType(string(t))
	if err != nil {
		return Course{}, err
	}
	if cause != nil {
		svc.logError(fmt.Sprintf("initializing %s resource of course %s", t, courseID), cause)
	}
	return svc.mutate(ctx, courseID, func(c *Course) error {
		if c.ZoomResources == nil {
			return nil
		}
		if slot := c.ZoomResources.Slot(t); slot != nil && slot.Status == StatusPending {
			slot.failed()
		}
		return nil
	})
}

// LinkResource attaches an existing external resource. A malformed ID is rejected without any mutation.
func (svc *service) LinkResource(ctx context.Context, courseID string, t ResourceType, resourceID string) (Course, error) {
	t, err := ParseResourceType(string(t))
	if err != nil {
		return Course{}, err
	}
	data := LinkRequest{ResourceID: resourceID}
	data.Clean()
	if err := svc.validate(data); err != nil {
		return Course{}, err
	}
	resourceID = data.ResourceID
	return svc.mutate(ctx, courseID, func(c *Course) error {
		if c.ZoomResources == nil {
			c.ZoomResources = NewZoomResources()
		}
		c.ZoomResources.Slot(t).created(resourceID)
		return nil
	})
}

func (svc *service) UnlinkResource(ctx context.Context, courseID string, t ResourceType) (Course, error) {
	t, err := ParseResourceType(string(t))
	if err != nil {
		return Course{}, err
	}
	return svc.mutate(ctx, courseID, func(c *Course) error {
		if c.ZoomResources != nil {
			c.ZoomResources.Slot(t).reset()
		}
		return nil
	})
}

func (svc *service) UnlinkResources(ctx context.Context, courseID string) (Course, error) {
	return svc.mutate(ctx, courseID, func(c *Course) error {
		if c.ZoomResources != nil {
			for _, t := range ResourceTypes {
				c.ZoomResources.Slot(t).reset()
			}
		}
		return nil
	})
}

func (svc *service) GetResources(ctx context.Context, courseID string) (map[ResourceType]*string, error) {
	c, err := svc.Repo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return c.ZoomResources.IDs(), nil
}

// BulkInitialize initializes the given resource types (all of them when empty) of every course, one course at a time.
// Resources that already have an ID or are pending are left as is; courses with nothing to initialize are skipped.
// It stops on the first failure.
func (svc *service) BulkInitialize(ctx context.Context, courseIDs []string, types []ResourceType) (BulkResult, error) {
	if len(courseIDs) == 0 {
		return newBulkResult(), core.NewValidationError(ErrNoCourses)
	}
	if len(types) == 0 {
		types = ResourceTypes
	}
	parsed := make([]ResourceType, 0, len(types))
	for _, t := range types {
		t, err := ParseResourceType(string(t))
		if err != nil {
			return newBulkResult(), err
		}
		parsed = append(parsed, t)
	}
	types = parsed

	return svc.bulk(ctx, courseIDs, func(c Course) (bool, error) {
		var done bool
		for _, t := range types {
			if c.ZoomResources != nil {
				if slot := c.ZoomResources.Slot(t); slot.HasResource() || slot.Status == StatusPending {
					continue
				}
			}
			if _, err := svc.InitializeResource(ctx, c.ID, t); err != nil {
				return done, err
			}
			done = true
		}
		return done, nil
	})
}

// BulkUnlink unlinks all the resources of every course, one course at a time.
// Courses without resources are skipped. It stops on the first failure.
func (svc *service) BulkUnlink(ctx context.Context, courseIDs []string) (BulkResult, error) {
	if len(courseIDs) == 0 {
		return newBulkResult(), core.NewValidationError(ErrNoCourses)
	}
	return svc.bulk(ctx, courseIDs, func(c Course) (bool, error) {
		if c.ZoomResources == nil {
			return false, nil
		}
		_, err := svc.UnlinkResources(ctx, c.ID)
		return err == nil, err
	})
}

// bulk applies fn sequentially to the courses; fn reports whether it changed the course.
func (svc *service) bulk(ctx context.Context, courseIDs []string, fn func(c Course) (bool, error)) (BulkResult, error) {
	res := newBulkResult()
	for i, id := range courseIDs {
		id = strings.TrimSpace(id)

		c, err := svc.Repo.GetCourse(ctx, id)
		if err == nil {
			var done bool
			if done, err = fn(c); err == nil {
				if done {
					res.Completed = append(res.Completed, id)
				} else {
					res.Skipped = append(res.Skipped, id)
				}
				continue
			}
		}

		res.Failed = id
		for _, rest := range courseIDs[i+1:] {
			res.Remaining = append(res.Remaining, strings.TrimSpace(rest))
		}
		return res, &BulkError{CourseID: id, Remaining: res.Remaining, Err: err}
	}
	return res, nil
}
