package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/code"
	"github.com/trezcool/mahudhurio/core/course"
)

const courseCols = "id, name, section_number, sections, professor_name, office_hours, news, " +
	"total_students, logo_path, created_at, updated_at"

// courseOrderFields whitelists the fields callers may order courses by.
var courseOrderFields = map[string]struct{}{
	"name":           {},
	"section_number": {},
	"total_students": {},
	"created_at":     {},
	"updated_at":     {},
}

type courseRepository struct {
	exec    core.DBExecutor
	timeout time.Duration
}

var (
	_ course.Repository = (*courseRepository)(nil) // interface compliance check
	_ code.Store        = (*courseRepository)(nil)
)

func NewCourseRepository(exec core.DBExecutor, conf *core.Config) *courseRepository {
	return &courseRepository{exec: exec, timeout: conf.Database.Timeout}
}

func (repo courseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// opCtx caps a statement at the configured database timeout.
func (repo courseRepository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if repo.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, repo.timeout)
}

type courseRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	SectionNumber string         `db:"section_number"`
	Sections      pq.StringArray `db:"sections"`
	ProfessorName string         `db:"professor_name"`
	OfficeHours   string         `db:"office_hours"`
	News          string         `db:"news"`
	TotalStudents int            `db:"total_students"`
	LogoPath      string         `db:"logo_path"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (repo courseRepository) pack(crs course.Course) courseRow {
	return courseRow{
		ID:            crs.ID,
		Name:          crs.Name,
		SectionNumber: crs.SectionNumber,
		Sections:      crs.Sections,
		ProfessorName: crs.ProfessorName,
		OfficeHours:   crs.OfficeHours,
		News:          crs.News,
		TotalStudents: crs.TotalStudents,
		LogoPath:      crs.LogoPath,
		CreatedAt:     crs.CreatedAt.UTC(),
		UpdatedAt:     crs.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) unpack(row courseRow) course.Course {
	return course.Course{
		ID:            row.ID,
		Name:          row.Name,
		SectionNumber: row.SectionNumber,
		Sections:      row.Sections,
		ProfessorName: row.ProfessorName,
		OfficeHours:   row.OfficeHours,
		News:          row.News,
		TotalStudents: row.TotalStudents,
		LogoPath:      row.LogoPath,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) unpackSlice(rows []courseRow) []course.Course {
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, repo.unpack(row))
	}
	return courses
}

// trapNoRowsErr maps psql "no rows" err to course.ErrNotFound
func (repo courseRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return core.NewStorageError(err, msg)
}

func (repo courseRepository) CheckNameUniqueness(ctx context.Context, name string, excludedCourses []course.Course, exec ...core.DBExecutor) error {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()
	exe := repo.getExec(exec)

	q := "SELECT EXISTS (SELECT 1 FROM course WHERE LOWER(name) = LOWER($1))"
	args := []interface{}{name}

	if len(excludedCourses) > 0 {
		ids := make([]string, 0, len(excludedCourses))
		for _, crs := range excludedCourses {
			ids = append(ids, crs.ID)
		}
		var err error
		q, args, err = sqlx.In("SELECT EXISTS (SELECT 1 FROM course WHERE LOWER(name) = LOWER(?) AND id NOT IN (?))", name, ids)
		if err != nil {
			return core.NewStorageError(err, "building course uniqueness query")
		}
		q = exe.Rebind(q)
	}

	var exists bool
	if err := exe.GetContext(ctx, &exists, q, args...); err != nil {
		return core.NewStorageError(err, "checking course uniqueness")
	}
	if exists {
		return course.ErrNameExists
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	crs.ID = uuid.New().String()
	row := repo.pack(crs)

	q := `
		INSERT INTO course (` + courseCols + `)
		VALUES (:id, :name, :section_number, :sections, :professor_name, :office_hours, :news, :total_students, :logo_path, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		if pgUniqueViolation(err, "course_name_lower_key") {
			return course.Course{}, course.ErrNameExists
		}
		return course.Course{}, core.NewStorageError(err, "inserting course")
	}
	return repo.unpack(row), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := courseOrderFields[ord.Field]; !ok {
			continue
		}
		orderList = append(orderList, ord.String())
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "LOWER(name)")
	}

	var rows []courseRow
	q := "SELECT " + courseCols + " FROM course ORDER BY " + strings.Join(orderList, ", ")
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q); err != nil {
		return nil, core.NewStorageError(err, "querying courses")
	}
	return repo.unpackSlice(rows), nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return course.Course{}, course.ErrNotFound
	}

	var row courseRow
	q := "SELECT " + courseCols + " FROM course WHERE id = $1"
	if err := repo.getExec(exec).GetContext(ctx, &row, q, id); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "finding course by ID")
	}
	return repo.unpack(row), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	row := repo.pack(crs)
	q := `
		UPDATE course
		SET name = :name, section_number = :section_number, sections = :sections, professor_name = :professor_name,
		    office_hours = :office_hours, news = :news, total_students = :total_students, logo_path = :logo_path,
		    updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row)
	if err != nil {
		if pgUniqueViolation(err, "course_name_lower_key") {
			return course.Course{}, course.ErrNameExists
		}
		return course.Course{}, core.NewStorageError(err, "updating course")
	}
	if n, err := res.RowsAffected(); err != nil {
		return course.Course{}, core.NewStorageError(err, "updating course")
	} else if n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return repo.unpack(row), nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return course.ErrNotFound
	}

	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM course WHERE id = $1", id)
	if err != nil {
		return core.NewStorageError(err, "deleting course")
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.NewStorageError(err, "deleting course")
	} else if n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo courseRepository) ReadCurrentCode(ctx context.Context, courseID string, exec ...core.DBExecutor) (code.Code, error) {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	if _, err := uuid.Parse(courseID); err != nil {
		return code.Code{}, course.ErrNotFound
	}

	var row struct {
		Value     null.String `db:"confirmation_code"`
		ExpiresAt null.Time   `db:"confirmation_code_expires_at"`
	}
	q := "SELECT confirmation_code, confirmation_code_expires_at FROM course WHERE id = $1"
	if err := repo.getExec(exec).GetContext(ctx, &row, q, courseID); err != nil {
		return code.Code{}, repo.trapNoRowsErr(err, "reading confirmation code")
	}
	if !row.Value.Valid || !row.ExpiresAt.Valid {
		return code.Code{}, code.ErrNoCode
	}
	return code.Code{Value: row.Value.String, ExpiresAt: row.ExpiresAt.Time.UTC()}, nil
}

func (repo courseRepository) SetCurrentCode(ctx context.Context, courseID string, c code.Code, exec ...core.DBExecutor) error {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	q := "UPDATE course SET confirmation_code = $1, confirmation_code_expires_at = $2 WHERE id = $3"
	res, err := repo.getExec(exec).ExecContext(ctx, q, c.Value, c.ExpiresAt.UTC(), courseID)
	if err != nil {
		return core.NewStorageError(err, "storing confirmation code")
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.NewStorageError(err, "storing confirmation code")
	} else if n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo courseRepository) QueryCourseIDs(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	var ids []string
	if err := repo.getExec(exec).SelectContext(ctx, &ids, "SELECT id FROM course ORDER BY created_at"); err != nil {
		return nil, core.NewStorageError(err, "querying course IDs")
	}
	return ids, nil
}
