package course

import (
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"

	"github.com/coreymead/zoom-class-builder/core"
)

// Resource types
const (
	Whiteboard ResourceType = "whiteboard"
	Chat       ResourceType = "chat"
	Meeting    ResourceType = "meeting"
)

// Resource statuses
const (
	StatusNone    Status = "none"
	StatusPending Status = "pending"
	StatusCreated Status = "created"
	StatusError   Status = "error"
)

var (
	ResourceTypes = []ResourceType{Whiteboard, Chat, Meeting}

	resourceIDRegex = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

	ErrInvalidResourceType = errors.New("invalid resource type")
	ErrInvalidResourceID   = errors.New("invalid resource ID format")
)

type ResourceType string

// ParseResourceType returns a *core.ValidationError when s is not one of ResourceTypes.
func ParseResourceType(s string) (ResourceType, error) {
	rt := ResourceType(core.CleanString(s, true /* lower */))
	for _, t := range ResourceTypes {
		if rt == t {
			return rt, nil
		}
	}
	return "", core.NewValidationError(ErrInvalidResourceType, core.FieldError{Field: "type", Error: ErrInvalidResourceType.Error()})
}

// ValidResourceID reports whether id is a well-formed external resource ID.
func ValidResourceID(id string) bool {
	return resourceIDRegex.MatchString(id)
}

// Status of a resource slot. StatusNone is rendered as JSON null.
type Status string

func (s Status) MarshalJSON() ([]byte, error) {
	if s == StatusNone || s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *Status) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = StatusNone
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		str = string(StatusNone)
	}
	*s = Status(str)
	return nil
}

// Slot holds the state of one resource type of a course.
type Slot struct {
	Status     Status  `json:"status"`
	ResourceID *string `json:"resourceId"`
}

func (s *Slot) reset() {
	s.Status = StatusNone
	s.ResourceID = nil
}

func (s *Slot) pending() {
	s.Status = StatusPending
	s.ResourceID = nil
}

func (s *Slot) created(resourceID string) {
	s.Status = StatusCreated
	s.ResourceID = core.StringPtr(resourceID)
}

func (s *Slot) failed() {
	s.Status = StatusError
	s.ResourceID = nil
}

// HasResource reports whether a resource ID is attached to the slot.
func (s Slot) HasResource() bool {
	return s.ResourceID != nil && *s.ResourceID != ""
}

// ZoomResources holds the three resource slots of a course. Slots transition independently.
type ZoomResources struct {
	Whiteboard Slot `json:"whiteboard"`
	Chat       Slot `json:"chat"`
	Meeting    Slot `json:"meeting"`
}

func NewZoomResources() *ZoomResources {
	return &ZoomResources{
		Whiteboard: Slot{Status: StatusNone},
		Chat:       Slot{Status: StatusNone},
		Meeting:    Slot{Status: StatusNone},
	}
}

// Slot returns a pointer to the slot of type t; nil for an unknown type.
func (zr *ZoomResources) Slot(t ResourceType) *Slot {
	switch t {
	case Whiteboard:
		return &zr.Whiteboard
	case Chat:
		return &zr.Chat
	case Meeting:
		return &zr.Meeting
	}
	return nil
}

// IDs maps every resource type to its resource ID (nil when unset).
func (zr *ZoomResources) IDs() map[ResourceType]*string {
	ids := make(map[ResourceType]*string, len(ResourceTypes))
	for _, t := range ResourceTypes {
		ids[t] = nil
		if zr != nil {
			if slot := zr.Slot(t); slot.HasResource() {
				ids[t] = core.StringPtr(*slot.ResourceID)
			}
		}
	}
	return ids
}

func (zr *ZoomResources) NeedsSetup() bool {
	return !(zr.Whiteboard.HasResource() && zr.Chat.HasResource() && zr.Meeting.HasResource())
}

func (zr *ZoomResources) clone() *ZoomResources {
	if zr == nil {
		return nil
	}
	cp := *zr
	for _, t := range ResourceTypes {
		if slot := cp.Slot(t); slot.ResourceID != nil {
			slot.ResourceID = core.StringPtr(*slot.ResourceID)
		}
	}
	return &cp
}

// Clone returns a deep copy of c.
func (c Course) Clone() Course {
	cp := c
	if c.Users != nil {
		cp.Users = make([]User, len(c.Users))
		copy(cp.Users, c.Users)
	}
	cp.ZoomResources = c.ZoomResources.clone()
	return cp
}

// LinkRequest holds the external resource ID to attach to a slot.
type LinkRequest struct {
	ResourceID string `json:"resourceId" validate:"required,resourceid"`
}

func (lr *LinkRequest) Clean() {
	lr.ResourceID = core.CleanString(lr.ResourceID)
}
