package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
	"github.com/coreymead/zoom-class-builder/tests"
)

func newRepo(t *testing.T) course.Repository {
	return NewCourseRepository(testutil.OpenSQLite(t))
}

func Test_courseRepository_seed(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	n, err := course.Seed(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// seeding is idempotent
	n, err = course.Seed(ctx, repo)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, want := range course.SeedCourses() {
		got, err := repo.GetCourse(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func Test_courseRepository_QueryCourses(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	c1 := testutil.CreateCourse(t, repo, "c1", "Algebra", "Linear algebra", course.NewDate(2024, 1, 1), course.NewDate(2024, 6, 1), now.Add(time.Hour))
	c2 := testutil.CreateCourse(t, repo, "c2", "biology", "Cells", course.NewDate(2024, 2, 1), course.NewDate(2024, 5, 1), now.Add(2*time.Hour))
	c3 := testutil.CreateCourse(t, repo, "c3", "Chemistry", "Algebraic models", course.NewDate(2023, 9, 1), course.NewDate(2024, 1, 31), now.Add(3*time.Hour))

	c3.ZoomResources = &course.ZoomResources{
		Whiteboard: course.Slot{Status: course.StatusCreated, ResourceID: core.StringPtr("wb-1")},
		Chat:       course.Slot{Status: course.StatusCreated, ResourceID: core.StringPtr("chat-1")},
		Meeting:    course.Slot{Status: course.StatusCreated, ResourceID: core.StringPtr("meet-1")},
	}
	c3, err := repo.UpdateCourse(ctx, c3)
	require.NoError(t, err)
	// pending slots still need setup
	c1.ZoomResources = course.NewZoomResources()
	c1.ZoomResources.Chat.Status = course.StatusPending
	c1, err = repo.UpdateCourse(ctx, c1)
	require.NoError(t, err)

	tests := []struct {
		name     string
		filter   course.QueryFilter
		ordering []core.DBOrdering
		want     []course.Course
	}{
		{name: "all", want: []course.Course{c1, c2, c3}},
		{name: "search", filter: course.QueryFilter{Search: "ALGEBRA"}, want: []course.Course{c1, c3}},
		{name: "needs setup", filter: course.QueryFilter{NeedsSetup: true}, want: []course.Course{c1, c2}},
		{name: "both", filter: course.QueryFilter{Search: "cells", NeedsSetup: true}, want: []course.Course{c2}},
		{name: "no match", filter: course.QueryFilter{Search: "lol"}, want: []course.Course{}},
		{name: "underscore is literal", filter: course.QueryFilter{Search: "a_g"}, want: []course.Course{}},
		{name: "percent is literal", filter: course.QueryFilter{Search: "%"}, want: []course.Course{}},
		{name: "escape char is literal", filter: course.QueryFilter{Search: "!"}, want: []course.Course{}},
		{name: "name is case insensitive", ordering: []core.DBOrdering{{Field: "name"}}, want: []course.Course{c3, c2, c1}},
		{name: "start_date", ordering: []core.DBOrdering{{Field: "start_date", Ascending: true}}, want: []course.Course{c3, c1, c2}},
		{name: "-created_at", ordering: []core.DBOrdering{{Field: "created_at"}}, want: []course.Course{c3, c2, c1}},
		{name: "unknown field", ordering: []core.DBOrdering{{Field: "id; DROP TABLE courses"}}, want: []course.Course{c1, c2, c3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryCourses(ctx, tt.filter, tt.ordering...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_courseRepository_UpdateCourse(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	_, err := course.Seed(ctx, repo)
	require.NoError(t, err)

	c, err := repo.GetCourse(ctx, "1")
	require.NoError(t, err)

	c.Name = "Intro"
	c.Users = []course.User{
		{ID: "u9", Name: "Zed", Role: course.RoleAdmin},
		c.Users[1],
	}
	c.ZoomResources.Chat = course.Slot{Status: course.StatusError}
	c.UpdatedAt = c.UpdatedAt.Add(time.Hour)

	got, err := repo.UpdateCourse(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	// participants keep their order and may lack an email
	got, err = repo.GetCourse(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "u9", got.Users[0].ID)
	assert.Empty(t, got.Users[0].Email)

	// unlinking everything drops the resources row
	got.ZoomResources = nil
	got, err = repo.UpdateCourse(ctx, got)
	require.NoError(t, err)
	assert.Nil(t, got.ZoomResources)

	got.ID = "lol"
	_, err = repo.UpdateCourse(ctx, got)
	assert.True(t, core.IsNotFound(err))
}

func Test_courseRepository_DeleteCourse(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	_, err := course.Seed(ctx, repo)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteCourse(ctx, "1"))
	_, err = repo.GetCourse(ctx, "1")
	assert.True(t, core.IsNotFound(err))
	assert.True(t, core.IsNotFound(repo.DeleteCourse(ctx, "1")))

	// the shared participant of the other course is kept
	c, err := repo.GetCourse(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Users[0].ID)
}
