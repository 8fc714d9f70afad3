package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
	emailsvc "github.com/coreymead/zoom-class-builder/services/email"
	"github.com/coreymead/zoom-class-builder/tests"
)

func Test_home(t *testing.T) {
	app := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Zoom Class Builder API!", rec.Body.String())
}

func Test_courseApi_query(t *testing.T) {
	app := setup(t)

	path := func(search, ordering string, needsSetup bool) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if needsSetup {
			v.Add("needs_setup", "true")
		}
		return "/api/courses?" + v.Encode()
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	algebra := testutil.CreateCourse(t, repo, "c1", "Algebra", "Linear algebra", course.NewDate(2024, 1, 1), course.NewDate(2024, 6, 1), now.Add(1*time.Hour))
	biology := testutil.CreateCourse(t, repo, "c2", "Biology", "Cells and genetics", course.NewDate(2024, 2, 1), course.NewDate(2024, 5, 1), now.Add(2*time.Hour))
	chem := testutil.CreateCourse(t, repo, "c3", "Chemistry", "Organic chemistry and algebraic models", course.NewDate(2023, 9, 1), course.NewDate(2024, 1, 31), now.Add(3*time.Hour))

	// chemistry is fully set up
	c := getCourse(t, chem.ID)
	c.ZoomResources = &course.ZoomResources{
		Whiteboard: course.Slot{Status: course.StatusCreated, ResourceID: core.StringPtr("wb-1")},
		Chat:       course.Slot{Status: course.StatusCreated, ResourceID: core.StringPtr("chat-1")},
		Meeting:    course.Slot{Status: course.StatusCreated, ResourceID: core.StringPtr("meet-1")},
	}
	chem, err := repo.UpdateCourse(context.Background(), c)
	require.NoError(t, err)

	empty := marchallList(t)

	tests := []httpTest{
		{name: "Get all", path: "/api/courses", wantData: marchallList(t, algebra, biology, chem)},
		{name: "search (unknown)", path: path("lol", "", false), wantData: empty},
		{name: "search=ALGEBRA", path: path("ALGEBRA", "", false), wantData: marchallList(t, algebra, chem)},
		{name: "needs_setup", path: path("", "", true), wantData: marchallList(t, algebra, biology)},
		{name: "search & needs_setup", path: path("algebra", "", true), wantData: marchallList(t, algebra)},
		{name: "order by -created_at", path: path("", "-created_at", false), wantData: marchallList(t, chem, biology, algebra)},
		{name: "order by start_date", path: path("", "start_date", false), wantData: marchallList(t, chem, algebra, biology)},
		{name: "order by -name", path: path("", "-name", false), wantData: marchallList(t, chem, biology, algebra)},
		{name: "order by end_date,name", path: path("", "end_date,name", false), wantData: marchallList(t, chem, biology, algebra)},
		{name: "unknown ordering is ignored", path: path("", "lol", false), wantData: marchallList(t, algebra, biology, chem)},
		{
			name: "bad needs_setup", path: "/api/courses?needs_setup=lol", wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			req, rec := newRequest(http.MethodGet, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_retrieve(t *testing.T) {
	app := setup(t)
	seed(t)

	tests := []httpTest{
		{name: "unknown", path: "/api/courses/lol", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Message: "course not found"})},
		{name: "found", path: "/api/courses/1", wantCode: http.StatusOK, wantData: marchallObj(t, getCourse(t, "1"))},
		{name: "trailing slash", path: "/api/courses/2/", wantCode: http.StatusOK, wantData: marchallObj(t, getCourse(t, "2"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("wire format", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/courses/2")
		app.ServeHTTP(rec, req)
		var data map[string]interface{}
		decode(t, rec, &data)
		assert.Equal(t, "2024-02-01", data["startDate"])
		assert.Equal(t, "2024-05-31", data["endDate"])
		assert.Nil(t, data["zoomResources"])
		assert.Len(t, data["users"], 2)
	})
}

func Test_courseApi_create(t *testing.T) {
	app := setup(t)

	required := "this field is required"
	tests := []httpTest{
		{
			name: "empty body", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: "invalid input", Fields: map[string]string{
				"name": required, "description": required, "startDate": required, "endDate": required,
			}}),
		},
		{
			name: "blank name", wantCode: http.StatusBadRequest,
			body: []byte(`{"name":"   ","description":"d","startDate":"2024-01-01","endDate":"2024-02-01"}`),
			wantData: marchallObj(t, httpErr{Message: "invalid input", Fields: map[string]string{"name": required}}),
		},
		{
			name: "end before start", wantCode: http.StatusBadRequest,
			body: []byte(`{"name":"n","description":"d","startDate":"2024-02-01","endDate":"2024-01-01"}`),
			wantData: marchallObj(t, httpErr{Message: "invalid input", Fields: map[string]string{"endDate": "end date must be after start date"}}),
		},
		{
			name: "end equals start", wantCode: http.StatusBadRequest,
			body: []byte(`{"name":"n","description":"d","startDate":"2024-02-01","endDate":"2024-02-01"}`),
			wantData: marchallObj(t, httpErr{Message: "invalid input", Fields: map[string]string{"endDate": "end date must be after start date"}}),
		},
		{
			name: "malformed date", wantCode: http.StatusBadRequest,
			body: []byte(`{"name":"n","description":"d","startDate":"2024-13-01","endDate":"2024-02-01"}`),
		},
		{
			name: "malformed json", wantCode: http.StatusBadRequest,
			body: []byte(`{"name":`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/courses", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// nothing was stored
	courses, err := repo.QueryCourses(context.Background(), course.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, courses)

	t.Run("success", func(t *testing.T) {
		body := []byte(`{"name":"  Physics ","description":"Mechanics","startDate":"2024-03-01","endDate":"2024-07-01T00:00:00Z"}`)
		req, rec := newRequest(http.MethodPost, "/api/courses", body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var got course.Course
		decode(t, rec, &got)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "Physics", got.Name)
		assert.Equal(t, "2024-03-01", got.StartDate.String())
		assert.Equal(t, "2024-07-01", got.EndDate.String())
		assert.Empty(t, got.Users)
		assert.Nil(t, got.ZoomResources)

		checkCodeAndData(t, httpTest{wantCode: http.StatusCreated, wantData: marchallObj(t, getCourse(t, got.ID))}, rec)
	})
}

func Test_courseApi_update(t *testing.T) {
	app := setup(t)
	seed(t)
	orig := getCourse(t, "2")

	tests := []httpTest{
		{name: "unknown", path: "/api/courses/lol", body: []byte(`{"name":"x"}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Message: "course not found"})},
		{
			name: "blank name", path: "/api/courses/2", body: []byte(`{"name":""}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: "invalid input", Fields: map[string]string{"name": "this field is required"}}),
		},
		{
			name: "end before start", path: "/api/courses/2", body: []byte(`{"endDate":"2024-01-15"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: "invalid input", Fields: map[string]string{"endDate": "end date must be after start date"}}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPut, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
	assert.Equal(t, orig, getCourse(t, "2"))

	t.Run("partial", func(t *testing.T) {
		req, rec := newRequest(http.MethodPut, "/api/courses/2", []byte(`{"name":"Web Dev 2","endDate":"2024-06-30"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		got := getCourse(t, "2")
		assert.Equal(t, "Web Dev 2", got.Name)
		assert.Equal(t, orig.Description, got.Description)
		assert.Equal(t, orig.StartDate, got.StartDate)
		assert.Equal(t, "2024-06-30", got.EndDate.String())
		assert.Equal(t, orig.Users, got.Users)
		assert.Equal(t, orig.CreatedAt, got.CreatedAt)
		assert.True(t, got.UpdatedAt.After(orig.UpdatedAt))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, got)}, rec)
	})
}

func Test_courseApi_destroy(t *testing.T) {
	app := setup(t)
	seed(t)

	req, rec := newRequest(http.MethodDelete, "/api/courses/1")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newRequest(http.MethodGet, "/api/courses")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, getCourse(t, "2"))}, rec)

	req, rec = newRequest(http.MethodGet, "/api/courses/1")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req, rec = newRequest(http.MethodDelete, "/api/courses/1")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Message: "course not found"})}, rec)
}

func Test_courseApi_users(t *testing.T) {
	app := setup(t)
	seed(t)
	orig := getCourse(t, "2")
	emailsvc.ResetSentMessages()

	t.Run("invalid", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "unknown course", path: "/api/courses/lol/users", body: []byte(`{"name":"Eve","role":"student"}`),
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Message: "course not found"}),
			},
			{
				name: "bad role", path: "/api/courses/2/users", body: []byte(`{"name":"Eve","role":"dean"}`),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Message: "invalid input", Fields: map[string]string{"role": "role must be one of student, teacher, TA or admin"}}),
			},
			{
				name: "bad email", path: "/api/courses/2/users", body: []byte(`{"name":"Eve","role":"student","email":"lol"}`),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Message: "invalid input", Fields: map[string]string{"email": "enter a valid email address"}}),
			},
			{
				name: "blank name", path: "/api/courses/2/users", body: []byte(`{"name":"","role":"TA"}`),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Message: "invalid input", Fields: map[string]string{"name": "this field is required"}}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newRequest(http.MethodPost, tt.path, tt.body)
				app.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}
		assert.Equal(t, orig, getCourse(t, "2"))
	})

	var added course.User
	t.Run("add", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/courses/2/users", []byte(`{"name":"Eve","role":"student","email":"Eve@Test.cd"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		got := getCourse(t, "2")
		require.Len(t, got.Users, len(orig.Users)+1)
		added = got.Users[len(got.Users)-1]
		assert.NotEmpty(t, added.ID)
		assert.Equal(t, "Eve", added.Name)
		assert.Equal(t, course.RoleStudent, added.Role)
		assert.Equal(t, "eve@test.cd", added.Email)

		sent := emailsvc.SentMessagesCopy()
		require.Len(t, sent, 1)
		assert.Equal(t, "eve@test.cd", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, got.Name)
	})

	t.Run("set role", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "unknown user", path: "/api/courses/2/users/lol", body: []byte(`{"role":"TA"}`),
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Message: "user not found in course"}),
			},
			{
				name: "bad role", path: "/api/courses/2/users/" + added.ID, body: []byte(`{"role":"lol"}`),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Message: "invalid input", Fields: map[string]string{"role": "role must be one of student, teacher, TA or admin"}}),
			},
			{name: "ok", path: "/api/courses/2/users/" + added.ID, body: []byte(`{"role":"TA"}`), wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newRequest(http.MethodPatch, tt.path, tt.body)
				app.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}
		got := getCourse(t, "2")
		assert.Equal(t, course.RoleTA, got.Users[len(got.Users)-1].Role)
	})

	t.Run("remove", func(t *testing.T) {
		req, rec := newRequest(http.MethodDelete, "/api/courses/2/users/lol")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Message: "user not found in course"})}, rec)

		req, rec = newRequest(http.MethodDelete, "/api/courses/2/users/"+added.ID)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		// participants are back to the original list
		assert.Equal(t, orig.Users, getCourse(t, "2").Users)
	})
}
