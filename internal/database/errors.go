package database

import "errors"

var (
	// ErrDatabaseNotFound is returned when the database file is missing and
	// Options.CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrNotEnoughRuns is returned when a comparison needs two runs of a
	// target but fewer are stored.
	ErrNotEnoughRuns = errors.New("at least two runs are required for comparison")
)
