package preference

import (
	"context"

	"github.com/trezcool/mahudhurio/core"
)

// CurrentCourseKey stores the id of the course the dashboard is focused on.
// Other keys belong to UI collaborators and flow through untouched.
const CurrentCourseKey = "current_course_id"

type Preference struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Repository interface {
	// GetPreference returns the stored value, or "" when the key is unset.
	GetPreference(ctx context.Context, key string, exec ...core.DBExecutor) (string, error)
	// SetPreference upserts the value; an empty string unsets the key.
	SetPreference(ctx context.Context, key, value string, exec ...core.DBExecutor) error
}
