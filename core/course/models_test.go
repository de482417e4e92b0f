package course

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

func newTestValidator() *validator.Validate {
	validate := validator.New()
	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	return validate
}

func Test_cleanSections(t *testing.T) {
	tests := []struct {
		name     string
		sections []string
		want     []string
	}{
		{name: "sorted", sections: []string{"003", "001", "002"}, want: []string{"001", "002", "003"}},
		{name: "trimmed", sections: []string{" 001 ", "002"}, want: []string{"001", "002"}},
		{name: "deduplicated", sections: []string{"001", "001", " 001 "}, want: []string{"001"}},
		{name: "empties dropped", sections: []string{"001", "", "  "}, want: []string{"001"}},
		{name: "nil in empty out", sections: nil, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanSections(tt.sections); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("cleanSections() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_checkSections(t *testing.T) {
	if err := checkSections([]string{"001", "002"}, "001"); err != nil {
		t.Errorf("checkSections() error = %v", err)
	}

	err := checkSections([]string{"002", "003"}, "001")
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("checkSections() error = %v; want a validation error", err)
	}
	want := core.FieldError{Field: "sections", Error: "sections must include section_number"}
	if len(vErr.Fields) != 1 || vErr.Fields[0] != want {
		t.Errorf("Fields = %+v; want [%+v]", vErr.Fields, want)
	}
}

func Test_NewCourse_Validate(t *testing.T) {
	ctx := context.Background()
	validate := newTestValidator()
	svc, _, _, _ := newTestService(time.Date(2021, 3, 15, 10, 0, 0, 0, time.UTC))

	taken, err := svc.Create(ctx, NewCourse{Name: "Biology", SectionNumber: "001", Sections: []string{"001"}, ProfessorName: "Prof. Test"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	t.Run("cleans before validating", func(t *testing.T) {
		nc := NewCourse{
			Name:          "  Algorithms  ",
			SectionNumber: " 001 ",
			Sections:      []string{" 002 ", "001", "002", ""},
			ProfessorName: " Prof. Test ",
		}
		if err := nc.Validate(ctx, validate, svc); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if nc.Name != "Algorithms" || nc.SectionNumber != "001" {
			t.Errorf("cleaned = %+v", nc)
		}
		if want := []string{"001", "002"}; !reflect.DeepEqual(nc.Sections, want) {
			t.Errorf("Sections = %v; want %v", nc.Sections, want)
		}
	})

	tests := []struct {
		name    string
		nc      NewCourse
		valid   bool
		wantErr error // checked when set
	}{
		{
			name: "missing required fields",
			nc:   NewCourse{Name: "Algorithms"},
		},
		{
			name: "section labels reject punctuation",
			nc:   NewCourse{Name: "Algorithms", SectionNumber: "00-1", Sections: []string{"00-1"}, ProfessorName: "Prof. Test"},
		},
		{
			name: "sections must include the primary",
			nc:   NewCourse{Name: "Algorithms", SectionNumber: "001", Sections: []string{"002"}, ProfessorName: "Prof. Test"},
		},
		{
			name:    "names are unique ignoring case",
			nc:      NewCourse{Name: " BIOLOGY ", SectionNumber: "001", Sections: []string{"001"}, ProfessorName: "Prof. Test"},
			wantErr: ErrNameExists,
		},
		{
			name:  "valid",
			nc:    NewCourse{Name: "Algorithms", SectionNumber: "001", Sections: []string{"001", "002"}, ProfessorName: "Prof. Test"},
			valid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nc.Validate(ctx, validate, svc)
			if tt.valid {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() error = nil; want an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("updates may keep their own name", func(t *testing.T) {
		uc := UpdateCourse{Name: "Biology", SectionNumber: "001", Sections: []string{"001"}, ProfessorName: "Prof. Test"}
		if err := uc.Validate(ctx, validate, svc, taken); err != nil {
			t.Errorf("Validate() error = %v", err)
		}

		other := Course{ID: "other"}
		uc = UpdateCourse{Name: "Biology", SectionNumber: "001", Sections: []string{"001"}, ProfessorName: "Prof. Test"}
		if err := uc.Validate(ctx, validate, svc, other); !errors.Is(err, ErrNameExists) {
			t.Errorf("Validate() error = %v, wantErr %v", err, ErrNameExists)
		}
	})
}

func TestCourse_HasSection(t *testing.T) {
	crs := Course{Sections: []string{"001", "002"}}
	if !crs.HasSection("001") {
		t.Error("HasSection(001) = false; want true")
	}
	if crs.HasSection("003") {
		t.Error("HasSection(003) = true; want false")
	}
}
