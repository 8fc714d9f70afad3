package course

import (
	"sort"
	"strings"
	"time"

	"github.com/coreymead/zoom-class-builder/core"
)

// OrderingFields maps the orderable fields to their column names.
var OrderingFields = map[string]string{
	"name":       "name",
	"start_date": "start_date",
	"end_date":   "end_date",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// DefaultOrdering is applied when no valid ordering is requested.
var DefaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: true}}

// CleanOrderings keeps the supported orderings, falling back to DefaultOrdering.
func CleanOrderings(ordering []core.DBOrdering) []core.DBOrdering {
	ordering = core.FilterOrderings(ordering, OrderingFields)
	if len(ordering) == 0 {
		return DefaultOrdering
	}
	return ordering
}

func compareField(a, b Course, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "start_date":
		return compareTimes(a.StartDate.Time, b.StartDate.Time)
	case "end_date":
		return compareTimes(a.EndDate.Time, b.EndDate.Time)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	}
	return 0
}

// SortCourses sorts courses in place; ties are broken by ID.
func SortCourses(courses []Course, ordering ...core.DBOrdering) {
	ordering = CleanOrderings(ordering)
	sort.SliceStable(courses, func(i, j int) bool {
		for _, ord := range ordering {
			cmp := compareField(courses[i], courses[j], ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return courses[i].ID < courses[j].ID
	})
}

// FilterCourses returns the courses matching the filter.
func FilterCourses(courses []Course, filter QueryFilter) []Course {
	if filter.IsEmpty() {
		return courses
	}
	filtered := make([]Course, 0, len(courses))
	for _, c := range courses {
		if filter.Match(c) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
