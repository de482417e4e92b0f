package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/course"
)

type attendanceRepository struct {
	db      core.DB
	timeout time.Duration
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db core.DB, conf *core.Config) *attendanceRepository {
	return &attendanceRepository{db: db, timeout: conf.Database.Timeout}
}

func (repo attendanceRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// opCtx caps a statement at the configured database timeout.
func (repo attendanceRepository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if repo.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, repo.timeout)
}

type recordRow struct {
	ID          int64     `db:"id"`
	CourseID    string    `db:"course_id"`
	StudentName string    `db:"student_name"`
	StudentID   string    `db:"student_id"`
	RecordedAt  time.Time `db:"recorded_at"`
	Date        time.Time `db:"attendance_date"`
}

func (repo attendanceRepository) unpack(row recordRow) attendance.Record {
	return attendance.Record{
		ID:          row.ID,
		CourseID:    row.CourseID,
		StudentName: row.StudentName,
		StudentID:   row.StudentID,
		Timestamp:   row.RecordedAt.UTC(),
		Date:        core.DateOf(row.Date),
	}
}

// trapWriteErr maps constraint violations raised during the attendance write.
func (repo attendanceRepository) trapWriteErr(err error, msg string) error {
	switch {
	case pgUniqueViolation(err, "attendance_record_student_daily_key"):
		return attendance.ErrDuplicateStudent
	case pgUniqueViolation(err, "device_submission_daily_key"):
		return attendance.ErrDuplicateDevice
	case pgForeignKeyViolation(err):
		return course.ErrNotFound
	}
	return core.NewStorageError(err, msg)
}

// RecordAttendance runs detached from the request context: once the write
// starts it finishes or rolls back as a unit even if the caller goes away.
func (repo attendanceRepository) RecordAttendance(ctx context.Context, rec attendance.Record, dev attendance.DeviceSubmission) (attendance.Record, error) {
	timeout := repo.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tx, err := repo.db.BeginTxx(dctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return attendance.Record{}, core.NewStorageError(err, "beginning attendance write")
	}

	recQ := `
		INSERT INTO attendance_record (course_id, student_name, student_id, recorded_at, attendance_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err = tx.GetContext(dctx, &rec.ID, recQ, rec.CourseID, rec.StudentName, rec.StudentID, rec.Timestamp.UTC(), dateString(rec.Date)); err != nil {
		_ = tx.Rollback()
		return attendance.Record{}, repo.trapWriteErr(err, "inserting attendance record")
	}

	devQ := `
		INSERT INTO device_submission (course_id, ip_address, submitted_at, submission_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err = tx.GetContext(dctx, &dev.ID, devQ, dev.CourseID, dev.IPAddress, dev.Timestamp.UTC(), dateString(dev.Date)); err != nil {
		_ = tx.Rollback()
		return attendance.Record{}, repo.trapWriteErr(err, "inserting device submission")
	}

	if err = tx.Commit(); err != nil {
		return attendance.Record{}, repo.trapWriteErr(err, "committing attendance write")
	}
	return rec, nil
}

func (repo attendanceRepository) PresentCount(ctx context.Context, courseID string, date time.Time, exec ...core.DBExecutor) (int, error) {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()
	exe := repo.getExec(exec)

	if _, err := uuid.Parse(courseID); err != nil {
		return 0, course.ErrNotFound
	}

	var exists bool
	if err := exe.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM course WHERE id = $1)", courseID); err != nil {
		return 0, core.NewStorageError(err, "checking course")
	}
	if !exists {
		return 0, course.ErrNotFound
	}

	var cnt int
	q := "SELECT COUNT(*) FROM attendance_record WHERE course_id = $1 AND attendance_date = $2"
	if err := exe.GetContext(ctx, &cnt, q, courseID, dateString(date)); err != nil {
		return 0, core.NewStorageError(err, "counting attendance")
	}
	return cnt, nil
}

func (repo attendanceRepository) QueryCourseRecords(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]attendance.Record, error) {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	if _, err := uuid.Parse(courseID); err != nil {
		return nil, course.ErrNotFound
	}

	var rows []recordRow
	q := `
		SELECT id, course_id, student_name, student_id, recorded_at, attendance_date
		FROM attendance_record
		WHERE course_id = $1
		ORDER BY recorded_at, id`
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, core.NewStorageError(err, "querying attendance records")
	}

	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, repo.unpack(row))
	}
	return records, nil
}
