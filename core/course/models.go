package course

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coreymead/zoom-class-builder/core"
)

// Roles
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleTA      Role = "TA"
	RoleAdmin   Role = "admin"
)

var Roles = []Role{RoleStudent, RoleTeacher, RoleTA, RoleAdmin}

type Role string

func (r Role) IsValid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// User is a participant of exactly one Course.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
}

type Course struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	StartDate     Date           `json:"startDate"`
	EndDate       Date           `json:"endDate"`
	Users         []User         `json:"users"`
	ZoomResources *ZoomResources `json:"zoomResources"` // nil until a resource is initialized or linked
	CreatedAt     time.Time      `json:"createdAt"`     // UTC
	UpdatedAt     time.Time      `json:"updatedAt"`     // UTC
}

// MarshalJSON always renders `users` as a list.
func (c Course) MarshalJSON() ([]byte, error) {
	type alias Course
	a := alias(c)
	if a.Users == nil {
		a.Users = []User{}
	}
	return json.Marshal(a)
}

// NeedsSetup reports whether any of the course's resources has no resource ID yet.
func (c Course) NeedsSetup() bool {
	return c.ZoomResources == nil || c.ZoomResources.NeedsSetup()
}

func (c Course) userIndex(userID string) int {
	for i, usr := range c.Users {
		if usr.ID == userID {
			return i
		}
	}
	return -1
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Name        string `json:"name" validate:"notblank"`
	Description string `json:"description" validate:"notblank"`
	StartDate   *Date  `json:"startDate" validate:"required"`
	EndDate     *Date  `json:"endDate" validate:"required"`
}

func (nc *NewCourse) Clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// Omitted fields keep their current value.
type UpdateCourse struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	StartDate   *Date   `json:"startDate"`
	EndDate     *Date   `json:"endDate"`
}

// Merge returns the NewCourse resulting from applying uc on top of orig; it is validated like a creation.
func (uc UpdateCourse) Merge(orig Course) NewCourse {
	start, end := orig.StartDate, orig.EndDate
	nc := NewCourse{
		Name:        orig.Name,
		Description: orig.Description,
		StartDate:   &start,
		EndDate:     &end,
	}
	if uc.Name != nil {
		nc.Name = *uc.Name
	}
	if uc.Description != nil {
		nc.Description = *uc.Description
	}
	if uc.StartDate != nil {
		nc.StartDate = uc.StartDate
	}
	if uc.EndDate != nil {
		nc.EndDate = uc.EndDate
	}
	nc.Clean()
	return nc
}

// NewUser contains information needed to add a participant to a Course.
type NewUser struct {
	Name  string `json:"name" validate:"notblank"`
	Role  Role   `json:"role" validate:"required,courserole"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(core.CleanString(string(nu.Role)))
}

type UpdateUserRole struct {
	Role Role `json:"role" validate:"required,courserole"`
}

type QueryFilter struct {
	Search     string `query:"search"`
	NeedsSetup bool   `query:"needs_setup"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && !qf.NeedsSetup
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match reports whether c satisfies every set field of the filter.
// Search does a case-insensitive match on one of Course.Name or Course.Description.
func (qf QueryFilter) Match(c Course) bool {
	if qf.Search != "" {
		search := strings.ToLower(qf.Search)
		if !strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) {
			return false
		}
	}
	if qf.NeedsSetup && !c.NeedsSetup() {
		return false
	}
	return true
}

// Date is a calendar date, rendered as "2006-01-02".
type Date struct {
	time.Time
}

const DateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func dateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// layouts accepted by ParseDate, besides DateLayout; SQL drivers may hand dates back as timestamps.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseDate parses a "2006-01-02" date; timestamps are accepted and truncated to their date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return dateOf(t), nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = dateOf(v)
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	return fmt.Errorf("cannot scan %T into course.Date", src)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}
