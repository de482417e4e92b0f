package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/course"
)

var pkCount int64

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) RecordAttendance(ctx context.Context, rec attendance.Record, dev attendance.DeviceSubmission) (attendance.Record, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	if _, ok := repo.db.course.table[rec.CourseID]; !ok {
		return attendance.Record{}, course.ErrNotFound
	}

	for _, r := range repo.db.attendance.records {
		if r.CourseID == rec.CourseID && r.StudentID == rec.StudentID && r.Date.Equal(rec.Date) {
			return attendance.Record{}, attendance.ErrDuplicateStudent
		}
	}
	for _, d := range repo.db.attendance.devices {
		if d.CourseID == dev.CourseID && d.IPAddress == dev.IPAddress && d.Date.Equal(dev.Date) {
			return attendance.Record{}, attendance.ErrDuplicateDevice
		}
	}

	pkCount++
	rec.ID = pkCount
	pkCount++
	dev.ID = pkCount
	repo.db.attendance.records = append(repo.db.attendance.records, &rec)
	repo.db.attendance.devices = append(repo.db.attendance.devices, &dev)
	return rec, nil
}

func (repo *attendanceRepository) PresentCount(ctx context.Context, courseID string, date time.Time, exec ...core.DBExecutor) (int, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	if _, ok := repo.db.course.table[courseID]; !ok {
		return 0, course.ErrNotFound
	}

	cnt := 0
	for _, rec := range repo.db.attendance.records {
		if rec.CourseID == courseID && rec.Date.Equal(date) {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *attendanceRepository) QueryCourseRecords(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.attendance.records {
		if rec.CourseID == courseID {
			records = append(records, *rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
	return records, nil
}
