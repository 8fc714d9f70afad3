// Package client is a REST client of the course API. It implements course.Store and course.Linker,
// so callers can work with a remote server the same way they work with a local course service.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
)

type (
	apiError struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}

	bulkResponse struct {
		course.BulkResult
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}

	Client struct {
		rc *resty.Client
	}
)

var (
	_ course.Store  = (*Client)(nil)
	_ course.Linker = (*Client)(nil)
)

// New returns a client of the API served at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, timeout time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")+"/api").
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{rc: rc}
}

// decodeError turns an error response into the matching core error.
func decodeError(op string, code int, apiErr *apiError) error {
	msg := http.StatusText(code)
	if apiErr != nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	switch code {
	case http.StatusNotFound:
		return core.NewNotFoundError(msg)
	case http.StatusBadRequest:
		var flds []core.FieldError
		if apiErr != nil {
			for fld, fErr := range apiErr.Fields {
				flds = append(flds, core.FieldError{Field: fld, Error: fErr})
			}
		}
		return core.NewValidationError(errors.New(msg), flds...)
	}
	return core.NewTransportError(op, fmt.Errorf("%d: %s", code, msg))
}

// do sends the request; out receives the decoded body of a successful response.
func (cl *Client) do(ctx context.Context, op, method, path string, body, out interface{}, query url.Values) error {
	req := cl.rc.R().SetContext(ctx).SetError(&apiError{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return core.NewTransportError(op, err)
	}
	if resp.IsError() {
		apiErr, _ := resp.Error().(*apiError)
		return decodeError(op, resp.StatusCode(), apiErr)
	}
	return nil
}

func coursePath(id string, parts ...string) string {
	elems := append([]string{"/courses", url.PathEscape(id)}, parts...)
	return strings.Join(elems, "/")
}

func (cl *Client) Query(ctx context.Context, filter course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	q := make(url.Values)
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.NeedsSetup {
		q.Set("needs_setup", strconv.FormatBool(true))
	}
	if len(ordering) > 0 {
		fields := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			if ord.Ascending {
				fields = append(fields, ord.Field)
			} else {
				fields = append(fields, "-"+ord.Field)
			}
		}
		q.Set("ordering", strings.Join(fields, ","))
	}

	var courses []course.Course
	if err := cl.do(ctx, "querying courses", http.MethodGet, "/courses", nil, &courses, q); err != nil {
		return nil, err
	}
	return courses, nil
}

func (cl *Client) GetByID(ctx context.Context, id string) (course.Course, error) {
	var c course.Course
	err := cl.do(ctx, "getting course", http.MethodGet, coursePath(id), nil, &c, nil)
	return c, err
}

func (cl *Client) Create(ctx context.Context, nc course.NewCourse) (course.Course, error) {
	var c course.Course
	err := cl.do(ctx, "creating course", http.MethodPost, "/courses", nc, &c, nil)
	return c, err
}

func (cl *Client) Update(ctx context.Context, id string, uc course.UpdateCourse) (course.Course, error) {
	var c course.Course
	err := cl.do(ctx, "updating course", http.MethodPut, coursePath(id), uc, &c, nil)
	return c, err
}

func (cl *Client) Delete(ctx context.Context, id string) error {
	return cl.do(ctx, "deleting course", http.MethodDelete, coursePath(id), nil, nil, nil)
}

func (cl *Client) AddUser(ctx context.Context, courseID string, nu course.NewUser) (course.Course, error) {
	var c course.Course
	err := cl.do(ctx, "adding user", http.MethodPost, coursePath(courseID, "users"), nu, &c, nil)
	return c, err
}

func (cl *Client) RemoveUser(ctx context.Context, courseID, userID string) (course.Course, error) {
	var c course.Course
	err := cl.do(ctx, "removing user", http.MethodDelete, coursePath(courseID, "users", url.PathEscape(userID)), nil, &c, nil)
	return c, err
}

func (cl *Client) SetUserRole(ctx context.Context, courseID, userID string, role course.Role) (course.Course, error) {
	var c course.Course
	body := course.UpdateUserRole{Role: role}
	err := cl.do(ctx, "setting user role", http.MethodPatch, coursePath(courseID, "users", url.PathEscape(userID)), body, &c, nil)
	return c, err
}

// InitializeResource returns the pending course when the server provisions asynchronously.
func (cl *Client) InitializeResource(ctx context.Context, courseID string, t course.ResourceType) (course.Course, error) {
	var c course.Course
	err := cl.do(ctx, "initializing resource", http.MethodPost, coursePath(courseID, "zoom-resources", url.PathEscape(string(t))), nil, &c, nil)
	return c, err
}

func (cl *Client) LinkResource(ctx context.Context, courseID string, t course.ResourceType, resourceID string) (course.Course, error) {
	var c course.Course
	body := course.LinkRequest{ResourceID: resourceID}
	err := cl.do(ctx, "linking resource", http.MethodPost, coursePath(courseID, "zoom-resources", url.PathEscape(string(t)), "link"), body, &c, nil)
	return c, err
}

func (cl *Client) UnlinkResource(ctx context.Context, courseID string, t course.ResourceType) (course.Course, error) {
	var c course.Course
	err := cl.do(ctx, "unlinking resource", http.MethodDelete, coursePath(courseID, "zoom-resources", url.PathEscape(string(t))), nil, &c, nil)
	return c, err
}

func (cl *Client) UnlinkResources(ctx context.Context, courseID string) (course.Course, error) {
	var c course.Course
	err := cl.do(ctx, "unlinking resources", http.MethodDelete, coursePath(courseID, "zoom-resources"), nil, &c, nil)
	return c, err
}

func (cl *Client) GetResources(ctx context.Context, courseID string) (map[course.ResourceType]*string, error) {
	ids := make(map[course.ResourceType]*string)
	if err := cl.do(ctx, "getting resources", http.MethodGet, coursePath(courseID, "zoom-resources"), nil, &ids, nil); err != nil {
		return nil, err
	}
	return ids, nil
}

func (cl *Client) BulkInitialize(ctx context.Context, courseIDs []string, types []course.ResourceType) (course.BulkResult, error) {
	body := map[string]interface{}{"courseIds": courseIDs, "types": types}
	return cl.bulk(ctx, "initializing resources", "/courses/bulk/zoom-resources", body)
}

func (cl *Client) BulkUnlink(ctx context.Context, courseIDs []string) (course.BulkResult, error) {
	body := map[string]interface{}{"courseIds": courseIDs}
	return cl.bulk(ctx, "unlinking resources", "/courses/bulk/zoom-resources/unlink", body)
}

// bulk rebuilds the *course.BulkError of a bulk operation that stopped on a failing course.
func (cl *Client) bulk(ctx context.Context, op, path string, body interface{}) (course.BulkResult, error) {
	var res bulkResponse
	resp, err := cl.rc.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&res).
		SetError(&res).
		Post(path)
	if err != nil {
		return course.BulkResult{}, core.NewTransportError(op, err)
	}
	if !resp.IsError() {
		return res.BulkResult, nil
	}
	cause := decodeError(op, resp.StatusCode(), &apiError{Message: res.Message, Fields: res.Fields})
	if res.Failed == "" {
		// rejected before any course was processed
		return course.BulkResult{}, cause
	}
	return res.BulkResult, &course.BulkError{CourseID: res.Failed, Remaining: res.Remaining, Err: cause}
}
