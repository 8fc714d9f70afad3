package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
)

// SeedCourses returns the demo courses loaded into empty stores.
func SeedCourses() []Course {
	john := User{ID: "u1", Name: "John Doe", Role: RoleTeacher, Email: "john@example.com"}
	jane := User{ID: "u2", Name: "Jane Smith", Role: RoleStudent, Email: "jane@example.com"}
	bob := User{ID: "u3", Name: "Bob Wilson", Role: RoleTA, Email: "bob@example.com"}

	created1 := time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)
	created2 := time.Date(2023, time.December, 15, 0, 0, 0, 0, time.UTC)

	return []Course{
		{
			ID:          "1",
			Name:        "Introduction to Programming",
			Description: "Learn the basics of programming with Python",
			StartDate:   NewDate(2024, time.January, 1),
			EndDate:     NewDate(2024, time.April, 30),
			Users:       []User{john, jane},
			ZoomResources: &ZoomResources{
				Whiteboard: Slot{Status: StatusCreated, ResourceID: core.StringPtr("wb-123")},
				Chat:       Slot{Status: StatusCreated, ResourceID: core.StringPtr("chat-456")},
				Meeting:    Slot{Status: StatusCreated, ResourceID: core.StringPtr("meet-789")},
			},
			CreatedAt: created1,
			UpdatedAt: created1,
		},
		{
			ID:          "2",
			Name:        "Web Development",
			Description: "Full-stack web development with React and Node.js",
			StartDate:   NewDate(2024, time.February, 1),
			EndDate:     NewDate(2024, time.May, 31),
			Users:       []User{john, bob},
			CreatedAt:   created2,
			UpdatedAt:   created2,
		},
	}
}

// Seed stores the seed courses that do not exist yet. It returns the number of created courses.
func Seed(ctx context.Context, repo Repository) (int, error) {
	var created int
	for _, c := range SeedCourses() {
		_, err := repo.GetCourse(ctx, c.ID)
		if err == nil {
			continue
		}
		if !core.IsNotFound(err) {
			return created, errors.Wrapf(err, "checking course %s", c.ID)
		}
		if _, err = repo.CreateCourse(ctx, c); err != nil {
			return created, errors.Wrapf(err, "creating course %s", c.ID)
		}
		created++
	}
	return created, nil
}
