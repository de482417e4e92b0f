package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/preference"
)

type preferenceRepository struct {
	exec    core.DBExecutor
	timeout time.Duration
}

var _ preference.Repository = (*preferenceRepository)(nil) // interface compliance check

func NewPreferenceRepository(exec core.DBExecutor, conf *core.Config) *preferenceRepository {
	return &preferenceRepository{exec: exec, timeout: conf.Database.Timeout}
}

func (repo preferenceRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// opCtx caps a statement at the configured database timeout.
func (repo preferenceRepository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if repo.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, repo.timeout)
}

func (repo preferenceRepository) GetPreference(ctx context.Context, key string, exec ...core.DBExecutor) (string, error) {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	var val string
	err := repo.getExec(exec).GetContext(ctx, &val, "SELECT value FROM preference WHERE key = $1", key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", core.NewStorageError(err, "reading preference")
	}
	return val, nil
}

func (repo preferenceRepository) SetPreference(ctx context.Context, key, value string, exec ...core.DBExecutor) error {
	ctx, cancel := repo.opCtx(ctx)
	defer cancel()

	q := `
		INSERT INTO preference (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := repo.getExec(exec).ExecContext(ctx, q, key, value); err != nil {
		return core.NewStorageError(err, "storing preference")
	}
	return nil
}
