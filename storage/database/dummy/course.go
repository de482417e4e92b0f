package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/code"
	"github.com/trezcool/mahudhurio/core/course"
)

type courseRepository struct {
	db *DB
}

var (
	_ course.Repository = (*courseRepository)(nil) // interface compliance check
	_ code.Store        = (*courseRepository)(nil)
)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.course.table))
	for _, crs := range repo.db.course.table {
		courses = append(courses, *crs)
	}
	return courses
}

func isExcluded(crs course.Course, excluded []course.Course) bool {
	for _, e := range excluded {
		if e.ID == crs.ID {
			return true
		}
	}
	return false
}

func nameTaken(courses []course.Course, name string, excluded []course.Course) bool {
	for _, crs := range courses {
		if strings.EqualFold(crs.Name, name) && !isExcluded(crs, excluded) {
			return true
		}
	}
	return false
}

func (repo *courseRepository) CheckNameUniqueness(ctx context.Context, name string, excludedCourses []course.Course, exec ...core.DBExecutor) error {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	if nameTaken(repo.query(), name, excludedCourses) {
		return course.ErrNameExists
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.course.Lock()
	defer repo.db.course.Unlock()

	if nameTaken(repo.query(), crs.Name, nil) {
		return course.Course{}, course.ErrNameExists
	}

	crs.ID = uuid.New().String()
	repo.db.course.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	repo.db.course.RLock()
	courses := repo.query()
	repo.db.course.RUnlock()

	sortCourses(courses, ordering)
	return courses, nil
}

func sortCourses(courses []course.Course, ordering []core.DBOrdering) {
	less := func(a, b course.Course) bool {
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	}
	if len(ordering) > 0 {
		ord := ordering[0]
		less = func(a, b course.Course) bool {
			var res bool
			switch ord.Field {
			case "created_at":
				res = a.CreatedAt.Before(b.CreatedAt)
			case "updated_at":
				res = a.UpdatedAt.Before(b.UpdatedAt)
			case "total_students":
				res = a.TotalStudents < b.TotalStudents
			case "section_number":
				res = a.SectionNumber < b.SectionNumber
			default:
				res = strings.ToLower(a.Name) < strings.ToLower(b.Name)
			}
			if !ord.Ascending {
				res = !res
			}
			return res
		}
	}
	sort.SliceStable(courses, func(i, j int) bool { return less(courses[i], courses[j]) })
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	if crs, ok := repo.db.course.table[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.course.Lock()
	defer repo.db.course.Unlock()

	orig, ok := repo.db.course.table[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if nameTaken(repo.query(), crs.Name, []course.Course{*orig}) {
		return course.Course{}, course.ErrNameExists
	}

	*orig = crs
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.course.Lock()
	defer repo.db.course.Unlock()
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	if _, ok := repo.db.course.table[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.course.table, id)
	delete(repo.db.course.codes, id)

	// cascade
	records := repo.db.attendance.records[:0]
	for _, rec := range repo.db.attendance.records {
		if rec.CourseID != id {
			records = append(records, rec)
		}
	}
	repo.db.attendance.records = records

	devices := repo.db.attendance.devices[:0]
	for _, dev := range repo.db.attendance.devices {
		if dev.CourseID != id {
			devices = append(devices, dev)
		}
	}
	repo.db.attendance.devices = devices
	return nil
}

func (repo *courseRepository) ReadCurrentCode(ctx context.Context, courseID string, exec ...core.DBExecutor) (code.Code, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	if _, ok := repo.db.course.table[courseID]; !ok {
		return code.Code{}, course.ErrNotFound
	}
	if c, ok := repo.db.course.codes[courseID]; ok {
		return *c, nil
	}
	return code.Code{}, code.ErrNoCode
}

func (repo *courseRepository) SetCurrentCode(ctx context.Context, courseID string, c code.Code, exec ...core.DBExecutor) error {
	repo.db.course.Lock()
	defer repo.db.course.Unlock()

	if _, ok := repo.db.course.table[courseID]; !ok {
		return course.ErrNotFound
	}
	repo.db.course.codes[courseID] = &c
	return nil
}

func (repo *courseRepository) QueryCourseIDs(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	repo.db.course.RLock()
	courses := repo.query()
	repo.db.course.RUnlock()

	sort.SliceStable(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	ids := make([]string, 0, len(courses))
	for _, crs := range courses {
		ids = append(ids, crs.ID)
	}
	return ids, nil
}
