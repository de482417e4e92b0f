package attendance

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

type Record struct {
	ID          int64     `json:"id"`
	CourseID    string    `json:"course_id"`
	StudentName string    `json:"student_name"`
	StudentID   string    `json:"student_id"`
	Timestamp   time.Time `json:"timestamp"`       // UTC
	Date        time.Time `json:"attendance_date"` // UTC calendar day of Timestamp
}

// DeviceSubmission pins the submitting peer address for the day. One is
// written alongside every Record, in the same transaction.
type DeviceSubmission struct {
	ID        int64     `json:"id"`
	CourseID  string    `json:"course_id"`
	IPAddress string    `json:"ip_address"` // peer address as observed by the transport
	Timestamp time.Time `json:"timestamp"`  // UTC
	Date      time.Time `json:"submission_date"`
}

// SubmitAttendance is a student's check-in payload.
type SubmitAttendance struct {
	CourseID         string `json:"course_id" validate:"required"`
	StudentName      string `json:"student_name" validate:"required"`
	StudentID        string `json:"student_id" validate:"required"`
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}

func (sa *SubmitAttendance) Validate(ctx context.Context, validate *validator.Validate) error {
	sa.clean()
	return validate.StructCtx(ctx, sa)
}

func (sa *SubmitAttendance) clean() {
	sa.CourseID = core.CleanString(sa.CourseID)
	sa.StudentName = core.CleanString(sa.StudentName)
	sa.StudentID = core.CleanString(sa.StudentID)
	sa.ConfirmationCode = core.CleanString(sa.ConfirmationCode)
}
