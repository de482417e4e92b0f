package testutil

import (
	"context"
	"log"
	"net/mail"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/course"
)

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	name, section string,
	totalStudents int,
	createdAt ...time.Time,
) course.Course {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	crs := course.Course{
		Name:          name,
		SectionNumber: section,
		Sections:      []string{section},
		ProfessorName: "Prof. Test",
		OfficeHours:   "MWF: 10AM-12PM",
		TotalStudents: totalStudents,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateRecord(
	t *testing.T,
	repo attendance.Repository,
	crs course.Course,
	studentName, studentID, deviceAddr string,
	timestamp time.Time,
) attendance.Record {
	timestamp = timestamp.UTC()
	rec := attendance.Record{
		CourseID:    crs.ID,
		StudentName: studentName,
		StudentID:   studentID,
		Timestamp:   timestamp,
		Date:        core.DateOf(timestamp),
	}
	dev := attendance.DeviceSubmission{
		CourseID:  crs.ID,
		IPAddress: deviceAddr,
		Timestamp: timestamp,
		Date:      core.DateOf(timestamp),
	}
	rec, err := repo.RecordAttendance(context.Background(), rec, dev)
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return rec
}

// Clock is a settable core.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

var _ core.Clock = (*Clock)(nil)

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Today() time.Time {
	return core.DateOf(c.Now())
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

type testLogger struct {
	std *log.Logger
}

var _ core.Logger = (*testLogger)(nil)

func NewLogger() core.Logger {
	return &testLogger{std: log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lmicroseconds)}
}

func (l testLogger) Enable(enabled bool)                   {}
func (l testLogger) Debug(msg string, args ...interface{}) { l.std.Println(msg) }
func (l testLogger) Info(msg string, args ...interface{})  { l.std.Println(msg) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.std.Println(msg) }
func (l testLogger) Error(msg string, args ...interface{}) { l.std.Println(msg) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.std.Fatal(msg) }

// NewConfig returns the test configuration; assign it to core.Conf in the
// bootstrap of packages that read the global.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:            true,
		TestMode:         true,
		Env:              "TEST",
		Build:            "test",
		AppName:          "Mahudhurio",
		LogLevel:         "error",
		DefaultFromEmail: mail.Address{Name: "Mahudhurio", Address: "noreply@test.cd"},
		FrontendBaseURL:  "http://localhost:3000",
		Server: core.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			ShutdownTimeout: 5 * time.Second,
		},
		Code: core.CodeConfig{
			Lifetime: 300 * time.Second,
			Length:   6,
			Alphabet: "ABCDEFGHJKLMNPQRSTUVWXYZ23456789",
		},
		Presence: core.PresenceConfig{
			PingInterval: 10 * time.Second,
			PongTimeout:  20 * time.Second,
		},
		// roomy enough not to interfere; throttling tests dial these down
		RateLimits: core.RateLimitConfig{
			RequestsPerMinute: 6000,
			Burst:             1000,
		},
	}
}
