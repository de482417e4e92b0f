package course

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

type Course struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	SectionNumber string    `json:"section_number"` // primary section label
	Sections      []string  `json:"sections"`       // sorted; always contains SectionNumber
	ProfessorName string    `json:"professor_name"`
	OfficeHours   string    `json:"office_hours"`
	News          string    `json:"news"`
	TotalStudents int       `json:"total_students"`
	LogoPath      string    `json:"logo_path"` // opaque; files are the asset collaborator's business
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

func (c *Course) HasSection(label string) bool {
	for _, s := range c.Sections {
		if s == label {
			return true
		}
	}
	return false
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Name          string   `json:"name" validate:"required"`
	SectionNumber string   `json:"section_number" validate:"required,alphanum_"`
	Sections      []string `json:"sections" validate:"required,min=1,dive,required,alphanum_"`
	ProfessorName string   `json:"professor_name" validate:"required"`
	OfficeHours   string   `json:"office_hours"`
	News          string   `json:"news"`
	TotalStudents int      `json:"total_students" validate:"min=0"`
	LogoPath      string   `json:"logo_path"`
}

func (nc *NewCourse) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	nc.clean()
	if err := validate.StructCtx(ctx, nc); err != nil {
		return err
	}
	if err := checkSections(nc.Sections, nc.SectionNumber); err != nil {
		return err
	}
	return svc.CheckNameUniqueness(ctx, nc.Name)
}

func (nc *NewCourse) clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.SectionNumber = core.CleanString(nc.SectionNumber)
	nc.Sections = cleanSections(nc.Sections)
	nc.ProfessorName = core.CleanString(nc.ProfessorName)
	nc.OfficeHours = core.CleanString(nc.OfficeHours)
	nc.News = core.CleanString(nc.News)
	nc.LogoPath = core.CleanString(nc.LogoPath)
}

// UpdateCourse replaces all course attributes; it carries the same constraints
// as NewCourse.
type UpdateCourse struct {
	Name          string   `json:"name" validate:"required"`
	SectionNumber string   `json:"section_number" validate:"required,alphanum_"`
	Sections      []string `json:"sections" validate:"required,min=1,dive,required,alphanum_"`
	ProfessorName string   `json:"professor_name" validate:"required"`
	OfficeHours   string   `json:"office_hours"`
	News          string   `json:"news"`
	TotalStudents int      `json:"total_students" validate:"min=0"`
	LogoPath      string   `json:"logo_path"`
}

func (uc *UpdateCourse) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface, orig Course) error {
	uc.clean()
	if err := validate.StructCtx(ctx, uc); err != nil {
		return err
	}
	if err := checkSections(uc.Sections, uc.SectionNumber); err != nil {
		return err
	}
	return svc.CheckNameUniqueness(ctx, uc.Name, orig)
}

func (uc *UpdateCourse) clean() {
	uc.Name = core.CleanString(uc.Name)
	uc.SectionNumber = core.CleanString(uc.SectionNumber)
	uc.Sections = cleanSections(uc.Sections)
	uc.ProfessorName = core.CleanString(uc.ProfessorName)
	uc.OfficeHours = core.CleanString(uc.OfficeHours)
	uc.News = core.CleanString(uc.News)
	uc.LogoPath = core.CleanString(uc.LogoPath)
}

// cleanSections trims labels, drops empties and duplicates, and sorts.
func cleanSections(sections []string) []string {
	cleaned := make([]string, 0, len(sections))
	seen := make(map[string]bool, len(sections))
	for _, s := range sections {
		s = core.CleanString(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		cleaned = append(cleaned, s)
	}
	sort.Strings(cleaned)
	return cleaned
}

func checkSections(sections []string, primary string) error {
	for _, s := range sections {
		if s == primary {
			return nil
		}
	}
	return core.NewValidationError(
		nil,
		core.FieldError{Field: "sections", Error: "sections must include section_number"},
	)
}
