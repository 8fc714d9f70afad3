package provisionsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
)

func testCourse() course.Course {
	return course.Course{
		ID:          "c1",
		Name:        "Algebra",
		Description: "Linear algebra",
		StartDate:   course.NewDate(2024, time.January, 1),
		EndDate:     course.NewDate(2024, time.June, 1),
		Users: []course.User{
			{ID: "u1", Name: "Ada", Role: course.RoleTeacher, Email: "ada@test.cd"},
			{ID: "u2", Name: "Bob", Role: course.RoleStudent},
		},
	}
}

func TestMockProvisioner_CreateResource(t *testing.T) {
	mockIDRegex := regexp.MustCompile(`^mock-(whiteboard|chat|meeting)-\d+$`)

	t.Run("success", func(t *testing.T) {
		p := NewMockProvisioner(0, time.Millisecond, 0)
		for _, rt := range course.ResourceTypes {
			id, err := p.CreateResource(context.Background(), testCourse(), rt)
			require.NoError(t, err)
			assert.Regexp(t, mockIDRegex, id)
			assert.Contains(t, id, string(rt))
			assert.True(t, course.ValidResourceID(id))
		}
	})

	t.Run("always fails", func(t *testing.T) {
		p := NewMockProvisioner(0, 0, 1)
		_, err := p.CreateResource(context.Background(), testCourse(), course.Chat)
		require.Error(t, err)
		assert.True(t, core.IsTransport(err))
		assert.ErrorIs(t, err, ErrSimulatedFailure)
	})

	t.Run("waits at least minDelay", func(t *testing.T) {
		p := NewMockProvisioner(20*time.Millisecond, 20*time.Millisecond, 0)
		start := time.Now()
		_, err := p.CreateResource(context.Background(), testCourse(), course.Meeting)
		require.NoError(t, err)
		assert.True(t, time.Since(start) >= 20*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		p := NewMockProvisioner(time.Second, time.Second, 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.CreateResource(ctx, testCourse(), course.Meeting)
		require.Error(t, err)
		assert.True(t, core.IsTransport(err))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type zoomStub struct {
	tokenCalls int32
	lastPath   string
	lastBody   map[string]interface{}
	fail       bool
}

func (z *zoomStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&z.tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "account_credentials", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "acc", r.URL.Query().Get("account_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		z.lastPath = r.URL.Path
		z.lastBody = nil
		_ = json.NewDecoder(r.Body).Decode(&z.lastBody)
		w.Header().Set("Content-Type", "application/json")
		if z.fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":300,"message":"invalid request"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		switch r.URL.Path {
		case "/v2/users/me/meetings":
			_, _ = w.Write([]byte(`{"id":85746065432,"topic":"Algebra"}`))
		case "/v2/chat/users/me/channels":
			_, _ = w.Write([]byte(`{"id":"ch_abc-123","name":"Algebra"}`))
		case "/v2/whiteboards":
			_, _ = w.Write([]byte(`{"id":"wb_XYZ"}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})
	return mux
}

func TestZoomProvisioner_CreateResource(t *testing.T) {
	stub := &zoomStub{}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	p, err := NewZoomProvisioner(core.ZoomConfig{
		AccountID:    "acc",
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      srv.URL + "/v2",
		TokenURL:     srv.URL + "/oauth/token",
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		rt       course.ResourceType
		wantPath string
		wantID   string
	}{
		{name: "meeting", rt: course.Meeting, wantPath: "/v2/users/me/meetings", wantID: "85746065432"},
		{name: "chat", rt: course.Chat, wantPath: "/v2/chat/users/me/channels", wantID: "ch_abc-123"},
		{name: "whiteboard", rt: course.Whiteboard, wantPath: "/v2/whiteboards", wantID: "wb_XYZ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := p.CreateResource(context.Background(), testCourse(), tt.rt)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantPath, stub.lastPath)
			assert.True(t, course.ValidResourceID(id))
		})
	}

	// the token is cached between calls
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.tokenCalls))

	t.Run("chat members carry emails", func(t *testing.T) {
		_, err := p.CreateResource(context.Background(), testCourse(), course.Chat)
		require.NoError(t, err)
		members, ok := stub.lastBody["members"].([]interface{})
		require.True(t, ok)
		assert.Len(t, members, 1)
	})

	t.Run("api error", func(t *testing.T) {
		stub.fail = true
		defer func() { stub.fail = false }()
		_, err := p.CreateResource(context.Background(), testCourse(), course.Meeting)
		require.Error(t, err)
		assert.True(t, core.IsTransport(err))
		assert.Contains(t, err.Error(), "invalid request")
	})
}

func TestZoomProvisioner_badCredentials(t *testing.T) {
	stub := &zoomStub{}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	p, err := NewZoomProvisioner(core.ZoomConfig{
		AccountID:    "acc",
		ClientID:     "client",
		ClientSecret: "wrong",
		BaseURL:      srv.URL + "/v2",
		TokenURL:     srv.URL + "/oauth/token",
	})
	require.NoError(t, err)

	_, err = p.CreateResource(context.Background(), testCourse(), course.Meeting)
	require.Error(t, err)
	assert.True(t, core.IsTransport(err))
}

func TestNewProvisioner(t *testing.T) {
	p, err := NewProvisioner(core.ProvisionerConfig{Kind: "mock"})
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = NewProvisioner(core.ProvisionerConfig{Kind: "zoom"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewProvisioner(core.ProvisionerConfig{Kind: "lol"})
	assert.Error(t, err)
}
