package dummydb

import (
	"context"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/preference"
)

type preferenceRepository struct {
	db *DB
}

var _ preference.Repository = (*preferenceRepository)(nil) // interface compliance check

func NewPreferenceRepository(db *DB) *preferenceRepository {
	return &preferenceRepository{db: db}
}

func (repo *preferenceRepository) GetPreference(ctx context.Context, key string, exec ...core.DBExecutor) (string, error) {
	repo.db.preference.RLock()
	defer repo.db.preference.RUnlock()
	return repo.db.preference.table[key], nil
}

func (repo *preferenceRepository) SetPreference(ctx context.Context, key, value string, exec ...core.DBExecutor) error {
	repo.db.preference.Lock()
	defer repo.db.preference.Unlock()

	if value == "" {
		delete(repo.db.preference.table, key)
		return nil
	}
	repo.db.preference.table[key] = value
	return nil
}
