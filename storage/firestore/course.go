package firestorerepo

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
)

type (
	slotDoc struct {
		Status     string  `firestore:"status"`
		ResourceID *string `firestore:"resourceId"`
	}

	resourcesDoc struct {
		Whiteboard slotDoc `firestore:"whiteboard"`
		Chat       slotDoc `firestore:"chat"`
		Meeting    slotDoc `firestore:"meeting"`
	}

	userDoc struct {
		ID    string `firestore:"id"`
		Name  string `firestore:"name"`
		Role  string `firestore:"role"`
		Email string `firestore:"email,omitempty"`
	}

	courseDoc struct {
		Name          string        `firestore:"name"`
		Description   string        `firestore:"description"`
		StartDate     string        `firestore:"startDate"`
		EndDate       string        `firestore:"endDate"`
		Users         []userDoc     `firestore:"users"`
		ZoomResources *resourcesDoc `firestore:"zoomResources"`
		CreatedAt     time.Time     `firestore:"createdAt"`
		UpdatedAt     time.Time     `firestore:"updatedAt"`
	}

	courseRepository struct {
		client     *firestore.Client
		collection string
	}
)

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

// NewClient creates a Firestore client, using application default credentials unless a credentials file is set.
func NewClient(ctx context.Context, conf core.FirestoreConfig) (*firestore.Client, error) {
	if conf.CredentialsFile == "" {
		return firestore.NewClient(ctx, conf.ProjectID)
	}
	return firestore.NewClient(ctx, conf.ProjectID, option.WithCredentialsFile(conf.CredentialsFile))
}

func NewCourseRepository(client *firestore.Client, collection string) course.Repository {
	return &courseRepository{client: client, collection: collection}
}

func toDoc(c course.Course) courseDoc {
	doc := courseDoc{
		Name:        c.Name,
		Description: c.Description,
		StartDate:   c.StartDate.String(),
		EndDate:     c.EndDate.String(),
		Users:       make([]userDoc, 0, len(c.Users)),
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
	for _, usr := range c.Users {
		doc.Users = append(doc.Users, userDoc{ID: usr.ID, Name: usr.Name, Role: string(usr.Role), Email: usr.Email})
	}
	if zr := c.ZoomResources; zr != nil {
		slot := func(s course.Slot) slotDoc {
			status := s.Status
			if status == "" {
				status = course.StatusNone
			}
			return slotDoc{Status: string(status), ResourceID: s.ResourceID}
		}
		doc.ZoomResources = &resourcesDoc{
			Whiteboard: slot(zr.Whiteboard),
			Chat:       slot(zr.Chat),
			Meeting:    slot(zr.Meeting),
		}
	}
	return doc
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (course.Course, error) {
	var doc courseDoc
	if err := snap.DataTo(&doc); err != nil {
		return course.Course{}, errors.Wrapf(err, "deserializing course %s", snap.Ref.ID)
	}
	start, err := course.ParseDate(doc.StartDate)
	if err != nil {
		return course.Course{}, errors.Wrapf(err, "course %s start date", snap.Ref.ID)
	}
	end, err := course.ParseDate(doc.EndDate)
	if err != nil {
		return course.Course{}, errors.Wrapf(err, "course %s end date", snap.Ref.ID)
	}

	c := course.Course{
		ID:          snap.Ref.ID,
		Name:        doc.Name,
		Description: doc.Description,
		StartDate:   start,
		EndDate:     end,
		Users:       make([]course.User, 0, len(doc.Users)),
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}
	for _, usr := range doc.Users {
		c.Users = append(c.Users, course.User{ID: usr.ID, Name: usr.Name, Role: course.Role(usr.Role), Email: usr.Email})
	}
	if zr := doc.ZoomResources; zr != nil {
		slot := func(s slotDoc) course.Slot {
			status := course.Status(s.Status)
			if status == "" {
				status = course.StatusNone
			}
			return course.Slot{Status: status, ResourceID: s.ResourceID}
		}
		c.ZoomResources = &course.ZoomResources{
			Whiteboard: slot(zr.Whiteboard),
			Chat:       slot(zr.Chat),
			Meeting:    slot(zr.Meeting),
		}
	}
	return c, nil
}

// QueryCourses loads the whole collection; filtering and ordering are done in memory.
func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	iter := repo.client.Collection(repo.collection).Documents(ctx)
	defer iter.Stop()

	courses := make([]course.Course, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterating courses")
		}
		c, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}

	courses = course.FilterCourses(courses, filter)
	course.SortCourses(courses, ordering...)
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if id == "" {
		return course.Course{}, course.ErrNotFound
	}
	snaps, err := repo.client.GetAll(ctx, []*firestore.DocumentRef{repo.client.Collection(repo.collection).Doc(id)})
	if err != nil {
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	if len(snaps) == 0 || !snaps[0].Exists() {
		return course.Course{}, course.ErrNotFound
	}
	return fromSnapshot(snaps[0])
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	if _, err := repo.client.Collection(repo.collection).Doc(c.ID).Create(ctx, toDoc(c)); err != nil {
		return course.Course{}, errors.Wrapf(err, "creating course %s", c.ID)
	}
	return repo.GetCourse(ctx, c.ID)
}

// mustExist runs fn in a transaction once the course document is known to exist.
func (repo *courseRepository) mustExist(ctx context.Context, id string, fn func(tx *firestore.Transaction, ref *firestore.DocumentRef) error) error {
	if id == "" {
		return course.ErrNotFound
	}
	ref := repo.client.Collection(repo.collection).Doc(id)
	return repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.GetAll([]*firestore.DocumentRef{ref})
		if err != nil {
			return errors.Wrap(err, "getting course")
		}
		if len(snaps) == 0 || !snaps[0].Exists() {
			return course.ErrNotFound
		}
		return fn(tx, ref)
	})
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	err := repo.mustExist(ctx, c.ID, func(tx *firestore.Transaction, ref *firestore.DocumentRef) error {
		return tx.Set(ref, toDoc(c))
	})
	if err != nil {
		return course.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID)
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	return repo.mustExist(ctx, id, func(tx *firestore.Transaction, ref *firestore.DocumentRef) error {
		return tx.Delete(ref)
	})
}
