package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/code"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/presence"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	exportsvc "github.com/trezcool/mahudhurio/services/export"
	dummydb "github.com/trezcool/mahudhurio/storage/database/dummy"
	testutil "github.com/trezcool/mahudhurio/tests"
)

var (
	courseRepo     course.Repository
	attendanceRepo attendance.Repository
	clock          *testutil.Clock
)

func setup(t *testing.T) *commandLine {
	core.Conf = testutil.NewConfig()

	// lazy handle; commands touching the DB are mocked in tests
	db, err := sqlx.Open("postgres", "")
	if err != nil {
		t.Fatalf("sqlx.Open() failed: %v", err)
	}

	dummy, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	courseRepo = dummydb.NewCourseRepository(dummy)
	attendanceRepo = dummydb.NewAttendanceRepository(dummy)
	prefRepo := dummydb.NewPreferenceRepository(dummy)

	clock = testutil.NewClock(time.Date(2021, 3, 15, 10, 0, 0, 0, time.UTC))
	testLogger := testutil.NewLogger()
	logger = testLogger
	mailSvc := emailsvc.NewConsoleServiceMock(core.Conf)

	hub := presence.NewHub(attendanceRepo, clock, testLogger)
	engine := code.NewEngine(courseRepo, clock, core.Conf.Code, testLogger)
	courseSvc := course.NewService(courseRepo, prefRepo, hub, clock, testLogger)
	attendanceSvc := attendance.NewService(attendanceRepo, courseSvc, engine, hub, clock, testLogger)
	exportSvc := exportsvc.NewService(courseSvc, attendanceSvc, mailSvc, clock)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	return &commandLine{
		db:        db,
		conf:      core.Conf,
		validate:  validate,
		courseSvc: courseSvc,
		exportSvc: exportSvc,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkCLIErr(t *testing.T, tt cliTest, err error) bool {
	t.Helper()

	if err == nil {
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, want %v%s", tt.wantErr, tt.wantErrStr)
		}
		return true
	}
	if tt.wantErr != nil {
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	} else if tt.wantErrStr != "" {
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	} else {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
	return false
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkCLIErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_createDB(t *testing.T) {
	cli := setup(t)

	dbErr := errors.New("connection refused")
	tests := []cliTest{
		{name: "created", args: []string{"createdb"}},
		{name: "db error", args: []string{"createdb"}, wantErr: dbErr, extra: dbErr},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		createDBFunc = func(conf *core.Config) error {
			if err, ok := tt.extra.(error); ok {
				return err
			}
			return nil
		}

		t.Run(tt.name, func(t *testing.T) {
			checkCLIErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_createCourse(t *testing.T) {
	cli := setup(t)

	testutil.CreateCourse(t, courseRepo, "Algorithms", "001", 25)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"createcourse"}, wantErr: errHelp},
		{name: "missing section", args: []string{"createcourse", "-name", "Compilers", "-professor", "Prof. Ada"}, wantErr: errHelp},
		{name: "missing professor", args: []string{"createcourse", "-name", "Compilers", "-section", "001"}, wantErr: errHelp},
		{name: "duplicate name", args: []string{"createcourse", "-name", "algorithms", "-section", "001", "-professor", "Prof. Ada"}, wantErr: course.ErrNameExists},
		{
			name: "created",
			args: []string{
				"createcourse",
				"-name", "Compilers",
				"-section", "001",
				"-sections", "002, 003",
				"-professor", "Prof. Ada",
				"-office", "TTh: 2PM-4PM",
				"-students", "40",
			},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if ok := checkCLIErr(t, tt, cli.run(args)); !ok || tt.name != "created" {
				return
			}

			courses, err := courseRepo.QueryCourses(context.Background(), nil)
			if err != nil {
				t.Fatalf("QueryCourses() failed: %v", err)
			}
			for _, crs := range courses {
				if crs.Name != "Compilers" {
					continue
				}
				if crs.SectionNumber != "001" {
					t.Errorf("SectionNumber = %s, want 001", crs.SectionNumber)
				}
				if len(crs.Sections) != 3 {
					t.Errorf("Sections = %v, want [001 002 003]", crs.Sections)
				}
				if crs.TotalStudents != 40 {
					t.Errorf("TotalStudents = %d, want 40", crs.TotalStudents)
				}
				return
			}
			t.Error("created course not found")
		})
	}
}

func Test_commandLine_exportRoll(t *testing.T) {
	cli := setup(t)

	crs := testutil.CreateCourse(t, courseRepo, "Algorithms", "001", 25)
	testutil.CreateRecord(t, attendanceRepo, crs, "Jane Doe", "X1", "192.168.1.20", clock.Now())
	testutil.CreateRecord(t, attendanceRepo, crs, "John Doe", "X2", "192.168.1.21", clock.Now().Add(time.Minute))

	outDir := t.TempDir()

	tests := []cliTest{
		{name: "no course", args: []string{"exportroll"}, wantErr: errHelp},
		{name: "course not found", args: []string{"exportroll", "-course", "deadbeef"}, wantErr: course.ErrNotFound},
		{name: "written", args: []string{"exportroll", "-course", crs.ID, "-out", outDir}},
		{name: "no valid recipient", args: []string{"exportroll", "-course", crs.ID, "-email", " , "}, wantErrStr: "no valid recipient address"},
		{name: "emailed", args: []string{"exportroll", "-course", crs.ID, "-email", "prof@test.cd"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			sentBefore := len(emailsvc.SentMessages)

			if ok := checkCLIErr(t, tt, cli.run(args)); !ok {
				return
			}

			switch tt.name {
			case "written":
				path := filepath.Join(outDir, "attendance_algorithms_2021-03-15.csv")
				content, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("reading exported roll: %v", err)
				}
				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				if len(lines) != 3 {
					t.Fatalf("roll has %d lines, want 3", len(lines))
				}
				if lines[0] != "timestamp,student_name,student_id,course_name,course_id" {
					t.Errorf("unexpected header: %s", lines[0])
				}
				if !strings.Contains(lines[1], "Jane Doe") || !strings.Contains(lines[2], "John Doe") {
					t.Errorf("rows out of order or incomplete: %v", lines[1:])
				}
			case "emailed":
				if got := len(emailsvc.SentMessages); got != sentBefore+1 {
					t.Fatalf("sent %d messages, want 1", got-sentBefore)
				}
				msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
				if msg.Subject != "Attendance roll for Algorithms" {
					t.Errorf("unexpected subject: %s", msg.Subject)
				}
				if len(msg.Attachments) != 1 {
					t.Fatalf("message has %d attachments, want 1", len(msg.Attachments))
				}
				if msg.Attachments[0].Filename != "attendance_algorithms_2021-03-15.csv" {
					t.Errorf("unexpected attachment name: %s", msg.Attachments[0].Filename)
				}
			}
		})
	}
}

func Test_commandLine_resetDB(t *testing.T) {
	cli := setup(t)

	promptErr := errors.New("prompt failed")

	type extra struct {
		answer string
		err    error
	}
	tests := []cliTest{
		{name: "aborted", args: []string{"resetdb"}, extra: extra{answer: "no"}, wantErr: errResetAborted},
		{name: "aborted on empty", args: []string{"resetdb"}, extra: extra{answer: ""}, wantErr: errResetAborted},
		{name: "prompt error", args: []string{"resetdb"}, extra: extra{err: promptErr}, wantErr: promptErr},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readConfirmFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.answer), extra.err
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			checkCLIErr(t, tt, cli.run(args))
		})
	}
}
