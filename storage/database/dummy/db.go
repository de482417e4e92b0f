package dummydb

import (
	"sync"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/code"
	"github.com/trezcool/mahudhurio/core/course"
)

type (
	DB struct {
		course     *courseTable
		attendance *attendanceTable
		preference *preferenceTable
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
		codes map[string]*code.Code
	}

	attendanceTable struct {
		sync.RWMutex
		records []*attendance.Record
		devices []*attendance.DeviceSubmission
	}

	preferenceTable struct {
		sync.RWMutex
		table map[string]string
	}
)

func Open() (*DB, error) {
	db := &DB{
		course: &courseTable{
			table: make(map[string]*course.Course),
			codes: make(map[string]*code.Code),
		},
		attendance: &attendanceTable{},
		preference: &preferenceTable{table: make(map[string]string)},
	}
	return db, nil
}
