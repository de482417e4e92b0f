package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/course"
)

var (
	// errors
	ErrDuplicateStudent = errors.New("attendance already recorded for this student today")
	ErrDuplicateDevice  = errors.New("attendance already submitted from this device today")
	ErrFieldMissing     = errors.New("missing required fields")
)

type (
	Repository interface {
		// RecordAttendance inserts the record and its device submission in one
		// serializable transaction; either unique violation rolls the whole
		// attempt back and surfaces as ErrDuplicateStudent/ErrDuplicateDevice.
		// The insert runs detached from the request context so an abandoned
		// request never leaves partial state.
		RecordAttendance(ctx context.Context, rec Record, dev DeviceSubmission) (Record, error)
		// PresentCount returns course.ErrNotFound when the course is gone.
		PresentCount(ctx context.Context, courseID string, date time.Time, exec ...core.DBExecutor) (int, error)
		// QueryCourseRecords returns the course's records ordered by timestamp ascending.
		QueryCourseRecords(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Record, error)
	}

	// CourseGetter is the slice of the course service the pipeline needs.
	CourseGetter interface {
		Get(ctx context.Context, id string) (course.Course, error)
	}

	// CodeValidator checks a submitted confirmation code without minting.
	CodeValidator interface {
		Validate(ctx context.Context, courseID, submitted string, now time.Time) error
	}

	// Broadcaster fans the course's fresh present-count out to live
	// subscribers. Implementations log their own failures; a broadcast never
	// fails the submission that triggered it.
	Broadcaster interface {
		Broadcast(courseID string)
	}

	ServiceInterface interface {
		Submit(ctx context.Context, sa SubmitAttendance, peerAddr string) (Record, error)
		PresentCount(ctx context.Context, courseID string, date time.Time) (int, error)
		QueryCourseRecords(ctx context.Context, courseID string) ([]Record, error)
	}

	Service struct {
		repo    Repository
		courses CourseGetter
		codes   CodeValidator
		bus     Broadcaster
		clock   core.Clock
		logger  core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	repo Repository,
	courses CourseGetter,
	codes CodeValidator,
	bus Broadcaster,
	clock core.Clock,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		courses: courses,
		codes:   codes,
		bus:     bus,
		clock:   clock,
		logger:  logger,
	}
}

// Submit runs a student check-in through the full pipeline. The check order is
// stable: field presence, course existence, code freshness, then the
// deduplicating insert. A successful commit stands even if the subsequent
// broadcast goes wrong.
func (svc *Service) Submit(ctx context.Context, sa SubmitAttendance, peerAddr string) (Record, error) {
	sa.clean()
	if fldErrs := missingFields(sa); len(fldErrs) > 0 {
		return Record{}, core.NewValidationError(ErrFieldMissing, fldErrs...)
	}

	crs, err := svc.courses.Get(ctx, sa.CourseID)
	if err != nil {
		return Record{}, err
	}

	now := svc.clock.Now()
	if err = svc.codes.Validate(ctx, crs.ID, sa.ConfirmationCode, now); err != nil {
		return Record{}, err
	}

	rec := Record{
		CourseID:    crs.ID,
		StudentName: sa.StudentName,
		StudentID:   sa.StudentID,
		Timestamp:   now,
		Date:        core.DateOf(now),
	}
	dev := DeviceSubmission{
		CourseID:  crs.ID,
		IPAddress: peerAddr,
		Timestamp: now,
		Date:      core.DateOf(now),
	}
	rec, err = svc.repo.RecordAttendance(ctx, rec, dev)
	if err != nil {
		return Record{}, err
	}

	svc.bus.Broadcast(crs.ID)

	return rec, nil
}

func (svc *Service) PresentCount(ctx context.Context, courseID string, date time.Time) (int, error) {
	return svc.repo.PresentCount(ctx, courseID, date)
}

func (svc *Service) QueryCourseRecords(ctx context.Context, courseID string) ([]Record, error) {
	return svc.repo.QueryCourseRecords(ctx, courseID)
}

func missingFields(sa SubmitAttendance) []core.FieldError {
	var fldErrs []core.FieldError
	for _, fld := range []struct{ name, value string }{
		{"course_id", sa.CourseID},
		{"student_name", sa.StudentName},
		{"student_id", sa.StudentID},
		{"confirmation_code", sa.ConfirmationCode},
	} {
		if fld.value == "" {
			fldErrs = append(fldErrs, core.FieldError{Field: fld.name, Error: "this field is required"})
		}
	}
	return fldErrs
}
