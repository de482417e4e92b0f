package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/course"
	exportsvc "github.com/trezcool/mahudhurio/services/export"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db        *sqlx.DB
	conf      *core.Config
	validate  *validator.Validate
	courseSvc course.ServiceInterface
	exportSvc exportsvc.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createdb - create the database and app role if missing")
	fmt.Println("  migrate SUBCOMMAND [args] - run database migrations. see: https://github.com/pressly/goose")
	fmt.Println("  createcourse -name NAME -section SECTION -professor NAME - create a new course")
	fmt.Println("  exportroll -course COURSE_ID [-out DIR] [-email ADDR[,ADDR...]] - export a course's attendance roll as CSV")
	fmt.Println("  resetdb - permanently delete all attendance data (prompts for confirmation)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createCourseCmd := flag.NewFlagSet("createcourse", flag.ExitOnError)
	ccName := createCourseCmd.String("name", "", "The course name; unique across courses.")
	ccSection := createCourseCmd.String("section", "", "The primary section label.")
	ccSections := createCourseCmd.String("sections", "", "Extra section labels, comma-separated.")
	ccProfessor := createCourseCmd.String("professor", "", "The professor's display name.")
	ccOffice := createCourseCmd.String("office", "", "Office hours blurb.")
	ccNews := createCourseCmd.String("news", "", "News blurb shown on the dashboard.")
	ccStudents := createCourseCmd.Int("students", 0, "Total enrolled students.")
	ccLogo := createCourseCmd.String("logo", "", "Logo path served by the dashboard.")

	exportRollCmd := flag.NewFlagSet("exportroll", flag.ExitOnError)
	erCourse := exportRollCmd.String("course", "", "The course id to export.")
	erOut := exportRollCmd.String("out", ".", "Directory the CSV is written to.")
	erEmail := exportRollCmd.String("email", "", "When set, email the roll to these comma-separated addresses instead of writing a file.")

	switch args[1] {
	case "createdb":
		return cli.createDB()
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "createcourse":
		if err := createCourseCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *ccName == "" || *ccSection == "" || *ccProfessor == "" {
			createCourseCmd.Usage()
			return errHelp
		}
		nc := course.NewCourse{
			Name:          *ccName,
			SectionNumber: *ccSection,
			Sections:      splitSections(*ccSections, *ccSection),
			ProfessorName: *ccProfessor,
			OfficeHours:   *ccOffice,
			News:          *ccNews,
			TotalStudents: *ccStudents,
			LogoPath:      *ccLogo,
		}
		return cli.createCourse(nc)
	case "exportroll":
		if err := exportRollCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *erCourse == "" {
			exportRollCmd.Usage()
			return errHelp
		}
		return cli.exportRoll(*erCourse, *erOut, *erEmail)
	case "resetdb":
		return cli.resetDB()
	default:
		cli.printUsage()
		return errHelp
	}
}

func splitSections(labels, primary string) []string {
	sections := []string{primary}
	for _, s := range strings.Split(labels, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}
	return sections
}
