package store

import "database/sql"

// Store provides access to all storage repositories.
type Store struct {
	db   *sql.DB
	jobs *JobStore
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:   db,
		jobs: NewJobStore(NewQueryInterceptor(db)),
	}
}

func (s *Store) Jobs() *JobStore {
	return s.jobs
}

func (s *Store) Close() error {
	return s.db.Close()
}
