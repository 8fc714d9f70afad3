package course

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("course not found")
	ErrUserNotFound = core.NewNotFoundError("user not found in course")
)

type (
	Repository interface {
		// QueryCourses applies AND operation on available QueryFilter fields.
		QueryCourses(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		CreateCourse(ctx context.Context, c Course) (Course, error)
		// UpdateCourse replaces the stored course, participants and resources included.
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
	}

	// Provisioner creates new external resources.
	Provisioner interface {
		CreateResource(ctx context.Context, c Course, t ResourceType) (resourceID string, err error)
	}

	// Store manages courses and their participants.
	Store interface {
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		Create(ctx context.Context, nc NewCourse) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error
		AddUser(ctx context.Context, courseID string, nu NewUser) (Course, error)
		RemoveUser(ctx context.Context, courseID, userID string) (Course, error)
		SetUserRole(ctx context.Context, courseID, userID string, role Role) (Course, error)
	}

	// Linker manages the resources of courses.
	Linker interface {
		InitializeResource(ctx context.Context, courseID string, t ResourceType) (Course, error)
		LinkResource(ctx context.Context, courseID string, t ResourceType, resourceID string) (Course, error)
		UnlinkResource(ctx context.Context, courseID string, t ResourceType) (Course, error)
		UnlinkResources(ctx context.Context, courseID string) (Course, error)
		GetResources(ctx context.Context, courseID string) (map[ResourceType]*string, error)
		BulkInitialize(ctx context.Context, courseIDs []string, types []ResourceType) (BulkResult, error)
		BulkUnlink(ctx context.Context, courseIDs []string) (BulkResult, error)
	}

	Service interface {
		Store
		Linker

		// BeginResource and ProvisionResource are the two halves of InitializeResource.
		BeginResource(ctx context.Context, courseID string, t ResourceType) (Course, error)
		ProvisionResource(ctx context.Context, courseID string, t ResourceType) (Course, error)
		// FailResource marks a pending resource as failed.
		FailResource(ctx context.Context, courseID string, t ResourceType, cause error) (Course, error)
	}

	ServiceDeps struct {
		Logger      core.Logger
		Repo        Repository
		Provisioner Provisioner
		MailSvc     core.EmailService
		Validate    *validator.Validate
		Translator  ut.Translator
	}

	service struct {
		ServiceDeps

		// mu serializes read-modify-write cycles on courses.
		mu  sync.Mutex
		now func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(deps ServiceDeps) Service {
	return &service{
		ServiceDeps: deps,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (svc *service) validate(obj interface{}) error {
	if err := svc.Validate.Struct(obj); err != nil {
		return core.TranslateValidationErrors(err, svc.Translator)
	}
	return nil
}

// mutate loads the course, applies fn and saves the result.
func (svc *service) mutate(ctx context.Context, id string, fn func(c *Course) error) (Course, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	c, err := svc.Repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if err = fn(&c); err != nil {
		return Course{}, err
	}
	c.UpdatedAt = svc.now()
	return svc.Repo.UpdateCourse(ctx, c)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	filter.Clean()
	return svc.Repo.QueryCourses(ctx, filter, ordering...)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.Repo.GetCourse(ctx, id)
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	nc.Clean()
	if err := svc.validate(nc); err != nil {
		return Course{}, err
	}

	now := svc.now()
	c := Course{
		ID:          uuid.NewString(),
		Name:        nc.Name,
		Description: nc.Description,
		StartDate:   *nc.StartDate,
		EndDate:     *nc.EndDate,
		Users:       []User{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.Repo.CreateCourse(ctx, c)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	return svc.mutate(ctx, id, func(c *Course) error {
		nc := uc.Merge(*c)
		if err := svc.validate(nc); err != nil {
			return err
		}
		c.Name = nc.Name
		c.Description = nc.Description
		c.StartDate = *nc.StartDate
		c.EndDate = *nc.EndDate
		return nil
	})
}

func (svc *service) Delete(ctx context.Context, id string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.Repo.DeleteCourse(ctx, id)
}

func (svc *service) AddUser(ctx context.Context, courseID string, nu NewUser) (Course, error) {
	nu.Clean()
	if err := svc.validate(nu); err != nil {
		return Course{}, err
	}

	usr := User{
		ID:    uuid.NewString(),
		Name:  nu.Name,
		Role:  nu.Role,
		Email: nu.Email,
	}
	c, err := svc.mutate(ctx, courseID, func(c *Course) error {
		c.Users = append(c.Users, usr)
		return nil
	})
	if err != nil {
		return Course{}, err
	}

	if usr.Email != "" {
		svc.sendEnrollmentMail(c, usr)
	}
	return c, nil
}

func (svc *service) RemoveUser(ctx context.Context, courseID, userID string) (Course, error) {
	return svc.mutate(ctx, courseID, func(c *Course) error {
		idx := c.userIndex(userID)
		if idx < 0 {
			return ErrUserNotFound
		}
		users := make([]User, 0, len(c.Users)-1)
		users = append(users, c.Users[:idx]...)
		c.Users = append(users, c.Users[idx+1:]...)
		return nil
	})
}

func (svc *service) SetUserRole(ctx context.Context, courseID, userID string, role Role) (Course, error) {
	data := UpdateUserRole{Role: Role(core.CleanString(string(role)))}
	if err := svc.validate(data); err != nil {
		return Course{}, err
	}
	return svc.mutate(ctx, courseID, func(c *Course) error {
		idx := c.userIndex(userID)
		if idx < 0 {
			return ErrUserNotFound
		}
		c.Users[idx].Role = data.Role
		return nil
	})
}

func (svc *service) sendEnrollmentMail(c Course, usr User) {
	if svc.MailSvc == nil {
		return
	}
	svc.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("You have been added to %s", c.Name),
		TemplateName: "course_enrollment",
		TemplateData: map[string]interface{}{
			"Name":       usr.Name,
			"CourseName": c.Name,
			"Role":       string(usr.Role),
			"StartDate":  c.StartDate.String(),
			"EndDate":    c.EndDate.String(),
		},
	})
}

func (svc *service) logError(msg string, err error) {
	if svc.Logger != nil {
		svc.Logger.Error(msg, errors.Wrap(err, msg))
	}
}
