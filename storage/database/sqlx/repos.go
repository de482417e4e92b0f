package sqlxrepos

import (
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// pgUniqueViolation reports whether err is a unique violation on the given constraint.
func pgUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == constraint
	}
	return false
}

// pgForeignKeyViolation reports whether err is a foreign key violation.
func pgForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}

// dateString formats t for a DATE column.
func dateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
