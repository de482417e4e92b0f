package exportsvc

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/course"
)

// rollHeader is the stable column layout spreadsheet consumers rely on.
var rollHeader = []string{"timestamp", "student_name", "student_id", "course_name", "course_id"}

type (
	// CourseGetter and RecordSource are the slices of the course and
	// attendance services the exporter needs.
	CourseGetter interface {
		Get(ctx context.Context, id string) (course.Course, error)
	}

	RecordSource interface {
		QueryCourseRecords(ctx context.Context, courseID string) ([]attendance.Record, error)
	}

	// Roll is a course's attendance sheet rendered as CSV.
	Roll struct {
		CourseID   string
		CourseName string
		Filename   string
		Content    []byte
	}

	ServiceInterface interface {
		Roll(ctx context.Context, courseID string) (Roll, error)
		EmailRoll(ctx context.Context, courseID string, to ...mail.Address) error
	}

	Service struct {
		courses CourseGetter
		records RecordSource
		mail    core.EmailService
		clock   core.Clock
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(courses CourseGetter, records RecordSource, mail core.EmailService, clock core.Clock) *Service {
	return &Service{
		courses: courses,
		records: records,
		mail:    mail,
		clock:   clock,
	}
}

// Roll renders the course's full attendance history, oldest record first.
func (svc *Service) Roll(ctx context.Context, courseID string) (Roll, error) {
	crs, err := svc.courses.Get(ctx, courseID)
	if err != nil {
		return Roll{}, err
	}
	records, err := svc.records.QueryCourseRecords(ctx, crs.ID)
	if err != nil {
		return Roll{}, err
	}

	var buff bytes.Buffer
	w := csv.NewWriter(&buff)
	if err = w.Write(rollHeader); err != nil {
		return Roll{}, errors.Wrap(err, "writing roll header")
	}
	for _, rec := range records {
		row := []string{
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.StudentName,
			rec.StudentID,
			crs.Name,
			crs.ID,
		}
		if err = w.Write(row); err != nil {
			return Roll{}, errors.Wrap(err, "writing roll row")
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return Roll{}, errors.Wrap(err, "flushing roll")
	}

	return Roll{
		CourseID:   crs.ID,
		CourseName: crs.Name,
		Filename:   rollFilename(crs.Name, svc.clock.Today()),
		Content:    buff.Bytes(),
	}, nil
}

func (svc *Service) EmailRoll(ctx context.Context, courseID string, to ...mail.Address) error {
	roll, err := svc.Roll(ctx, courseID)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:      to,
		Subject: "Attendance roll for " + roll.CourseName,
		BodyStr: fmt.Sprintf("Attached is the attendance roll for %s as of %s.",
			roll.CourseName, svc.clock.Today().Format("January 2, 2006")),
	}
	if err = msg.Attach(bytes.NewReader(roll.Content), roll.Filename, "text/csv"); err != nil {
		return errors.Wrap(err, "attaching roll")
	}
	svc.mail.SendMessages(msg)
	return nil
}

func rollFilename(courseName string, day time.Time) string {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(courseName)), " ", "_")
	return fmt.Sprintf("attendance_%s_%s.csv", name, day.Format("2006-01-02"))
}
