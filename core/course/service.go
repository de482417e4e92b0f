package course

import (
	"context"
	"errors"
	"fmt"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/preference"
)

var (
	// errors
	ErrNotFound   = errors.New("course not found")
	ErrNameExists = errors.New("a course with this name already exists")
)

type (
	Repository interface {
		// CheckNameUniqueness matches names case-insensitively, ignoring excludedCourses.
		CheckNameUniqueness(ctx context.Context, name string, excludedCourses []Course, exec ...core.DBExecutor) error
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		// QueryCourses returns courses ordered by name ascending unless overridden.
		QueryCourses(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		// DeleteCourse cascades to attendance records and device submissions.
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// Bus drops live dashboard subscriptions of a deleted course.
	Bus interface {
		CloseRoom(courseID string)
	}

	ServiceInterface interface {
		CheckNameUniqueness(ctx context.Context, name string, excludedCourses ...Course) error
		Create(ctx context.Context, nc NewCourse) (Course, error)
		Query(ctx context.Context, ordering ...core.DBOrdering) ([]Course, error)
		Get(ctx context.Context, id string) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error
		CurrentCourseID(ctx context.Context) (string, error)
		SetCurrentCourseID(ctx context.Context, id string) error
		EnsureSeedData(ctx context.Context) error
	}

	Service struct {
		repo   Repository
		prefs  preference.Repository
		bus    Bus
		clock  core.Clock
		logger core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, prefs preference.Repository, bus Bus, clock core.Clock, logger core.Logger) *Service {
	return &Service{
		repo:   repo,
		prefs:  prefs,
		bus:    bus,
		clock:  clock,
		logger: logger,
	}
}

func (svc *Service) CheckNameUniqueness(ctx context.Context, name string, excludedCourses ...Course) error {
	return svc.repo.CheckNameUniqueness(ctx, name, excludedCourses)
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := svc.clock.Now()
	crs := Course{
		Name:          nc.Name,
		SectionNumber: nc.SectionNumber,
		Sections:      nc.Sections,
		ProfessorName: nc.ProfessorName,
		OfficeHours:   nc.OfficeHours,
		News:          nc.News,
		TotalStudents: nc.TotalStudents,
		LogoPath:      nc.LogoPath,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) Query(ctx context.Context, ordering ...core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, ordering)
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	orig, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}

	// updated_at never goes backwards, even across restarts with a stepped wall clock
	now := svc.clock.Now()
	if now.Before(orig.UpdatedAt) {
		now = orig.UpdatedAt
	}

	crs := Course{
		ID:            orig.ID,
		Name:          uc.Name,
		SectionNumber: uc.SectionNumber,
		Sections:      uc.Sections,
		ProfessorName: uc.ProfessorName,
		OfficeHours:   uc.OfficeHours,
		News:          uc.News,
		TotalStudents: uc.TotalStudents,
		LogoPath:      uc.LogoPath,
		CreatedAt:     orig.CreatedAt,
		UpdatedAt:     now,
	}
	return svc.repo.UpdateCourse(ctx, crs)
}

// Delete removes the course and unsets the current-course preference if it
// pointed at it. The cascade to attendance records and device submissions
// happens in storage; a crash between the two steps leaves a dangling
// preference that CurrentCourseID repairs on the next read.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteCourse(ctx, id); err != nil {
		return err
	}
	svc.bus.CloseRoom(id)

	cur, err := svc.prefs.GetPreference(ctx, preference.CurrentCourseKey)
	if err != nil {
		return err
	}
	if cur == id {
		return svc.prefs.SetPreference(ctx, preference.CurrentCourseKey, "")
	}
	return nil
}

// CurrentCourseID returns the dashboard's current course id, or "" when unset.
// A stale value pointing at a deleted course is unset on read.
func (svc *Service) CurrentCourseID(ctx context.Context) (string, error) {
	id, err := svc.prefs.GetPreference(ctx, preference.CurrentCourseKey)
	if err != nil || id == "" {
		return "", err
	}

	if _, err = svc.repo.GetCourse(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			svc.logger.Warn(fmt.Sprintf("current course %s no longer exists, unsetting preference", id))
			return "", svc.prefs.SetPreference(ctx, preference.CurrentCourseKey, "")
		}
		return "", err
	}
	return id, nil
}

func (svc *Service) SetCurrentCourseID(ctx context.Context, id string) error {
	if id != "" {
		if _, err := svc.repo.GetCourse(ctx, id); err != nil {
			return err
		}
	}
	return svc.prefs.SetPreference(ctx, preference.CurrentCourseKey, id)
}

// EnsureSeedData makes a fresh install usable: it seeds a default course when
// none exists and points the current-course preference at a live course.
func (svc *Service) EnsureSeedData(ctx context.Context) error {
	courses, err := svc.repo.QueryCourses(ctx, nil)
	if err != nil {
		return err
	}

	if len(courses) == 0 {
		now := svc.clock.Now()
		crs, err := svc.repo.CreateCourse(ctx, Course{
			Name:          "Default Course",
			SectionNumber: "000",
			Sections:      []string{"000", "001"},
			ProfessorName: "Prof. John Doe",
			OfficeHours:   "MWF: 10AM-12PM",
			News:          "Welcome!",
			TotalStudents: 25,
			LogoPath:      "/university-logo.png",
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return err
		}
		svc.logger.Info(fmt.Sprintf("seeded default course %s (%s)", crs.ID, crs.Name))
		return svc.prefs.SetPreference(ctx, preference.CurrentCourseKey, crs.ID)
	}

	cur, err := svc.prefs.GetPreference(ctx, preference.CurrentCourseKey)
	if err != nil {
		return err
	}
	if cur != "" {
		if _, err = svc.repo.GetCourse(ctx, cur); err == nil {
			return nil
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	// dangling or unset: point at the first course by name
	svc.logger.Warn(fmt.Sprintf("current course %q missing, resetting to %s", cur, courses[0].ID))
	return svc.prefs.SetPreference(ctx, preference.CurrentCourseKey, courses[0].ID)
}
