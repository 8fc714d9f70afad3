package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/coreymead/zoom-class-builder/core/course"
)

type (
	// resourcePanel is the displayed state of one resource slot.
	resourcePanel struct {
		Type       course.ResourceType
		Status     course.Status
		ResourceID string
	}

	// courseView is what the detail screen shows of a course.
	courseView struct {
		ID          string
		Name        string
		Description string
		Dates       string
		Users       []course.User
		Panels      []resourcePanel
		NeedsSetup  bool
	}
)

func newCourseView(c course.Course) courseView {
	v := courseView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Dates:       c.StartDate.String() + " to " + c.EndDate.String(),
		Users:       c.Users,
		NeedsSetup:  c.NeedsSetup(),
	}
	for _, t := range course.ResourceTypes {
		p := resourcePanel{Type: t, Status: course.StatusNone}
		if c.ZoomResources != nil {
			slot := c.ZoomResources.Slot(t)
			p.Status = slot.Status
			if slot.ResourceID != nil {
				p.ResourceID = *slot.ResourceID
			}
		}
		v.Panels = append(v.Panels, p)
	}
	return v
}

func (v *courseView) panel(t course.ResourceType) *resourcePanel {
	for i := range v.Panels {
		if v.Panels[i].Type == t {
			return &v.Panels[i]
		}
	}
	return nil
}

// markPending shows the slot as pending while a command runs; the returned func restores the previous state.
func (v *courseView) markPending(t course.ResourceType) (restore func()) {
	p := v.panel(t)
	if p == nil {
		return func() {}
	}
	prev := *p
	p.Status = course.StatusPending
	return func() { *p = prev }
}

func (p resourcePanel) String() string {
	status := string(p.Status)
	if p.Status == "" {
		status = string(course.StatusNone)
	}
	if p.ResourceID != "" {
		return fmt.Sprintf("%s (%s)", status, p.ResourceID)
	}
	if p.Status == course.StatusPending {
		return status + "..."
	}
	return status
}

func (v courseView) renderPanels(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range v.Panels {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", p.Type, p)
	}
	_ = tw.Flush()
}

func (v courseView) render(w io.Writer) {
	_, _ = fmt.Fprintf(w, "%s  [%s]\n", v.Name, v.ID)
	_, _ = fmt.Fprintf(w, "%s\n", v.Description)
	_, _ = fmt.Fprintf(w, "Dates: %s\n", v.Dates)

	_, _ = fmt.Fprintf(w, "\nParticipants (%d)\n", len(v.Users))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, usr := range v.Users {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", usr.ID, usr.Name, usr.Role, usr.Email)
	}
	_ = tw.Flush()

	_, _ = fmt.Fprint(w, "\nZoom resources")
	if v.NeedsSetup {
		_, _ = fmt.Fprint(w, " (needs setup)")
	}
	_, _ = fmt.Fprintln(w)
	v.renderPanels(w)
}

func renderCourseList(w io.Writer, courses []course.Course) {
	if len(courses) == 0 {
		_, _ = fmt.Fprintln(w, "no courses")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tSTART\tEND\tUSERS\tRESOURCES")
	for _, c := range courses {
		resources := "ready"
		if c.NeedsSetup() {
			resources = "needs setup"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", c.ID, c.Name, c.StartDate, c.EndDate, len(c.Users), resources)
	}
	_ = tw.Flush()
}

func renderBulkResult(w io.Writer, res course.BulkResult) {
	line := func(label string, ids []string) {
		if len(ids) > 0 {
			_, _ = fmt.Fprintf(w, "%s: %s\n", label, strings.Join(ids, ", "))
		}
	}
	line("completed", res.Completed)
	line("skipped", res.Skipped)
	if res.Failed != "" {
		_, _ = fmt.Fprintf(w, "failed: %s\n", res.Failed)
	}
	line("untouched", res.Remaining)
}
