package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	. "github.com/coreymead/zoom-class-builder/apps/api/echo"
	"github.com/coreymead/zoom-class-builder/core/course"
	queuesvc "github.com/coreymead/zoom-class-builder/services/queue"
	"github.com/coreymead/zoom-class-builder/storage/database/dummy"
	"github.com/coreymead/zoom-class-builder/tests"
)

var (
	repo course.Repository
	prov *testutil.StubProvisioner
)

// setup returns a server backed by an empty in-memory store; tasks makes initialization asynchronous.
func setup(t *testing.T, tasks ...queuesvc.Client) *Server {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	repo = dummydb.NewCourseRepository(db)
	prov = &testutil.StubProvisioner{}

	var q queuesvc.Client
	if len(tasks) > 0 {
		q = tasks[0]
	}
	validate, translator := testutil.NewValidate()
	return NewServer(
		ServerDeps{
			Conf:       testutil.NewConfig(),
			Logger:     testutil.NewLogger(),
			CourseSvc:  testutil.NewCourseService(repo, prov),
			Tasks:      q,
			Validate:   validate,
			Translator: translator,
		},
	)
}

// seed stores the demo courses.
func seed(t *testing.T) {
	if _, err := course.Seed(context.Background(), repo); err != nil {
		t.Fatalf("course.Seed(): %v", err)
	}
}

func getCourse(t *testing.T, id string) course.Course {
	c, err := repo.GetCourse(context.Background(), id)
	if err != nil {
		t.Fatalf("getCourse(%s): %v", id, err)
	}
	return c
}

type httpErr struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
	extra    interface{}
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode(%s): %v", rec.Body.String(), err)
	}
}
