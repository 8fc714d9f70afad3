package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/coreymead/zoom-class-builder/core"
	"github.com/coreymead/zoom-class-builder/core/course"
)

const selectCourses = `
SELECT c.id, c.name, c.description, c.start_date, c.end_date, c.created_at, c.updated_at,
       z.course_id AS zoom_course_id,
       z.whiteboard_status, z.whiteboard_id, z.chat_status, z.chat_id, z.meeting_status, z.meeting_id
FROM courses c
LEFT JOIN zoom_resources z ON z.course_id = c.id`

var orderingExprs = map[string]string{
	"name":       "LOWER(c.name)",
	"start_date": "c.start_date",
	"end_date":   "c.end_date",
	"created_at": "c.created_at",
	"updated_at": "c.updated_at",
}

type (
	courseRow struct {
		ID          string      `db:"id"`
		Name        string      `db:"name"`
		Description string      `db:"description"`
		StartDate   course.Date `db:"start_date"`
		EndDate     course.Date `db:"end_date"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`

		ZoomCourseID     null.String `db:"zoom_course_id"`
		WhiteboardStatus null.String `db:"whiteboard_status"`
		WhiteboardID     null.String `db:"whiteboard_id"`
		ChatStatus       null.String `db:"chat_status"`
		ChatID           null.String `db:"chat_id"`
		MeetingStatus    null.String `db:"meeting_status"`
		MeetingID        null.String `db:"meeting_id"`
	}

	participantRow struct {
		CourseID string      `db:"course_id"`
		ID       string      `db:"id"`
		Position int         `db:"position"`
		Name     string      `db:"name"`
		Role     string      `db:"role"`
		Email    null.String `db:"email"`
	}

	courseRepository struct {
		db *sqlx.DB
	}
)

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func slotFrom(status, id null.String) course.Slot {
	slot := course.Slot{Status: course.StatusNone}
	if status.Valid && status.String != "" {
		slot.Status = course.Status(status.String)
	}
	if id.Valid && id.String != "" {
		slot.ResourceID = core.StringPtr(id.String)
	}
	return slot
}

func (row courseRow) toCourse() course.Course {
	c := course.Course{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		StartDate:   row.StartDate,
		EndDate:     row.EndDate,
		Users:       []course.User{},
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.ZoomCourseID.Valid {
		c.ZoomResources = &course.ZoomResources{
			Whiteboard: slotFrom(row.WhiteboardStatus, row.WhiteboardID),
			Chat:       slotFrom(row.ChatStatus, row.ChatID),
			Meeting:    slotFrom(row.MeetingStatus, row.MeetingID),
		}
	}
	return c
}

func (row participantRow) toUser() course.User {
	return course.User{
		ID:    row.ID,
		Name:  row.Name,
		Role:  course.Role(row.Role),
		Email: row.Email.String,
	}
}

// loadParticipants fills the Users of the courses, preserving their insertion order.
func (repo *courseRepository) loadParticipants(ctx context.Context, courses []course.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, 0, len(courses))
	idx := make(map[string]int, len(courses))
	for i, c := range courses {
		ids = append(ids, c.ID)
		idx[c.ID] = i
	}

	query, args, err := sqlx.In(
		"SELECT course_id, id, position, name, role, email FROM participants WHERE course_id IN (?) ORDER BY course_id, position",
		ids,
	)
	if err != nil {
		return errors.Wrap(err, "building participants query")
	}
	var rows []participantRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "selecting participants")
	}
	for _, row := range rows {
		i := idx[row.CourseID]
		courses[i].Users = append(courses[i].Users, row.toUser())
	}
	return nil
}

// likeEscaper makes the search term match literally in a LIKE ... ESCAPE '!' pattern.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(filter.Search)) + "%"
		where = append(where, "(LOWER(c.name) LIKE ? ESCAPE '!' OR LOWER(c.description) LIKE ? ESCAPE '!')")
		args = append(args, pattern, pattern)
	}
	if filter.NeedsSetup {
		where = append(where, "(z.course_id IS NULL OR z.whiteboard_id IS NULL OR z.chat_id IS NULL OR z.meeting_id IS NULL)")
	}

	query := selectCourses
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range course.CleanOrderings(ordering) {
		orderBy = append(orderBy, core.DBOrdering{Field: orderingExprs[ord.Field], Ascending: ord.Ascending}.String())
	}
	orderBy = append(orderBy, "c.id ASC")
	query += "\nORDER BY " + strings.Join(orderBy, ", ")

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	if err := repo.loadParticipants(ctx, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind(selectCourses+"\nWHERE c.id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "selecting course")
	}
	courses := []course.Course{row.toCourse()}
	if err = repo.loadParticipants(ctx, courses); err != nil {
		return course.Course{}, err
	}
	return courses[0], nil
}

func (repo *courseRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// saveChildren replaces the participants and resources of c.
func saveChildren(ctx context.Context, tx *sqlx.Tx, c course.Course) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM participants WHERE course_id = ?"), c.ID); err != nil {
		return errors.Wrap(err, "deleting participants")
	}
	for i, usr := range c.Users {
		_, err := tx.ExecContext(ctx,
			tx.Rebind("INSERT INTO participants (course_id, id, position, name, role, email) VALUES (?, ?, ?, ?, ?, ?)"),
			c.ID, usr.ID, i, usr.Name, string(usr.Role), null.NewString(usr.Email, usr.Email != ""),
		)
		if err != nil {
			return errors.Wrapf(err, "inserting participant %s", usr.ID)
		}
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM zoom_resources WHERE course_id = ?"), c.ID); err != nil {
		return errors.Wrap(err, "deleting resources")
	}
	if zr := c.ZoomResources; zr != nil {
		args := []interface{}{c.ID}
		for _, t := range course.ResourceTypes {
			slot := zr.Slot(t)
			status := slot.Status
			if status == "" {
				status = course.StatusNone
			}
			args = append(args, string(status), null.StringFromPtr(slot.ResourceID))
		}
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO zoom_resources
				(course_id, whiteboard_status, whiteboard_id, chat_status, chat_id, meeting_status, meeting_id)
				VALUES (?, ?, ?, ?, ?, ?, ?)`),
			args...,
		)
		if err != nil {
			return errors.Wrap(err, "inserting resources")
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO courses (id, name, description, start_date, end_date, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`),
			c.ID, c.Name, c.Description, c.StartDate, c.EndDate, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
		)
		if err != nil {
			return errors.Wrap(err, "inserting course")
		}
		return saveChildren(ctx, tx, c)
	})
	if err != nil {
		return course.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID)
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE courses SET name = ?, description = ?, start_date = ?, end_date = ?, updated_at = ?
				WHERE id = ?`),
			c.Name, c.Description, c.StartDate, c.EndDate, c.UpdatedAt.UTC(), c.ID,
		)
		if err != nil {
			return errors.Wrap(err, "updating course")
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "updating course")
		} else if n == 0 {
			return course.ErrNotFound
		}
		return saveChildren(ctx, tx, c)
	})
	if err != nil {
		return course.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID)
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	return repo.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM participants WHERE course_id = ?"), id); err != nil {
			return errors.Wrap(err, "deleting participants")
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM zoom_resources WHERE course_id = ?"), id); err != nil {
			return errors.Wrap(err, "deleting resources")
		}
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM courses WHERE id = ?"), id)
		if err != nil {
			return errors.Wrap(err, "deleting course")
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "deleting course")
		} else if n == 0 {
			return course.ErrNotFound
		}
		return nil
	})
}
