// Package store provides the SQLite persistence layer for capture jobs.
package store

import (
	"database/sql"

	"github.com/pagelens/pagelens/dbopen"
)

// Store is the jobs database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the jobs SQLite database at path, applies
// pragmas and the job schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
