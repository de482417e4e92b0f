package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/code"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/presence"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	exportsvc "github.com/trezcool/mahudhurio/services/export"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()

	logger = logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB; the handle is lazy so createdb can run before the DB exists
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	clock := core.NewClock()
	courseRepo := sqlxrepos.NewCourseRepository(db, conf)
	attendanceRepo := sqlxrepos.NewAttendanceRepository(db, conf)
	prefRepo := sqlxrepos.NewPreferenceRepository(db, conf)

	hub := presence.NewHub(attendanceRepo, clock, logger)
	engine := code.NewEngine(courseRepo, clock, conf.Code, logger)
	courseSvc := course.NewService(courseRepo, prefRepo, hub, clock, logger)
	attendanceSvc := attendance.NewService(attendanceRepo, courseSvc, engine, hub, clock, logger)
	exportSvc := exportsvc.NewService(courseSvc, attendanceSvc, mailSvc, clock)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:        db,
		conf:      conf,
		validate:  validate,
		courseSvc: courseSvc,
		exportSvc: exportSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
