package provisionsvc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
)

var ErrMissingCredentials = errors.New("zoom credentials not configured")

type (
	tokenResponse struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"` // seconds
	}

	meetingRequest struct {
		Topic     string `json:"topic"`
		Type      int    `json:"type"`
		Agenda    string `json:"agenda,omitempty"`
		StartTime string `json:"start_time,omitempty"`
	}

	channelRequest struct {
		Name    string          `json:"name"`
		Type    int             `json:"type"`
		Members []channelMember `json:"members"`
	}

	channelMember struct {
		Email string `json:"email"`
	}

	whiteboardRequest struct {
		Name string `json:"name"`
	}

	zoomError struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	zoomProvisioner struct {
		http      *resty.Client
		tokenHTTP *resty.Client
		conf      core.ZoomConfig

		mu          sync.Mutex
		token       string
		tokenExpiry time.Time
	}
)

var _ course.Provisioner = (*zoomProvisioner)(nil)

// NewZoomProvisioner creates resources through the Zoom REST API, authenticating with a
// server-to-server OAuth app (account credentials grant).
func NewZoomProvisioner(conf core.ZoomConfig) (course.Provisioner, error) {
	if conf.AccountID == "" || conf.ClientID == "" || conf.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if conf.UserID == "" {
		conf.UserID = "me"
	}
	return &zoomProvisioner{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(conf.BaseURL, "/")).
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
		tokenHTTP: resty.New().
			SetBasicAuth(conf.ClientID, conf.ClientSecret).
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
		conf: conf,
	}, nil
}

func (p *zoomProvisioner) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	var tok tokenResponse
	res, err := p.tokenHTTP.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"grant_type": "account_credentials", "account_id": p.conf.AccountID}).
		SetResult(&tok).
		Post(p.conf.TokenURL)
	if err != nil {
		return "", errors.Wrap(err, "requesting zoom token")
	}
	if res.IsError() || tok.AccessToken == "" {
		return "", errors.Errorf("zoom token request failed: %s: %s", res.Status(), res.String())
	}

	p.token = tok.AccessToken
	// refresh one minute early
	p.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}

func (p *zoomProvisioner) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var (
		result  map[string]interface{}
		zoomErr zoomError
	)
	res, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&result).
		SetError(&zoomErr).
		Post(path)
	if err != nil {
		return nil, errors.Wrapf(err, "POST %s", path)
	}
	if res.StatusCode() == http.StatusUnauthorized {
		p.mu.Lock()
		p.token = ""
		p.mu.Unlock()
	}
	if res.IsError() {
		return nil, errors.Errorf("zoom api error: %s: %d %s", res.Status(), zoomErr.Code, zoomErr.Message)
	}
	return result, nil
}

func idFrom(result map[string]interface{}) (string, error) {
	switch v := result["id"].(type) {
	case string:
		return v, nil
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", errors.New("zoom response has no id")
}

func (p *zoomProvisioner) CreateResource(ctx context.Context, c course.Course, t course.ResourceType) (string, error) {
	var (
		path string
		body interface{}
	)
	user := p.conf.UserID

	switch t {
	case course.Meeting:
		path = fmt.Sprintf("/users/%s/meetings", user)
		mr := meetingRequest{Topic: c.Name, Type: 3 /* recurring, no fixed time */, Agenda: c.Description}
		if !c.StartDate.IsZero() {
			mr.StartTime = c.StartDate.Format(time.RFC3339)
		}
		body = mr
	case course.Chat:
		path = fmt.Sprintf("/chat/users/%s/channels", user)
		cr := channelRequest{Name: c.Name, Type: 1 /* private */, Members: make([]channelMember, 0, len(c.Users))}
		for _, usr := range c.Users {
			if usr.Email != "" {
				cr.Members = append(cr.Members, channelMember{Email: usr.Email})
			}
		}
		body = cr
	case course.Whiteboard:
		path = "/whiteboards"
		body = whiteboardRequest{Name: c.Name}
	default:
		return "", course.ErrInvalidResourceType
	}

	op := fmt.Sprintf("creating zoom %s for course %s", t, c.ID)
	result, err := p.post(ctx, path, body)
	if err != nil {
		return "", core.NewTransportError(op, err)
	}
	id, err := idFrom(result)
	if err != nil {
		return "", core.NewTransportError(op, err)
	}
	return id, nil
}

// NewProvisioner returns the provisioner selected by provisioner.kind.
func NewProvisioner(conf core.ProvisionerConfig) (course.Provisioner, error) {
	switch conf.Kind {
	case "", "mock":
		return NewMockProvisioner(conf.MinDelay, conf.MaxDelay, conf.ErrorRate), nil
	case "zoom":
		return NewZoomProvisioner(conf.Zoom)
	}
	return nil, errors.Errorf("unknown provisioner %q", conf.Kind)
}
