package storage

import "errors"

// Sentinels shared by the memory, postgres and clickhouse stores. Callers
// match them with errors.Is.
var (
	ErrNotFound     = errors.New("storage: record not found")
	ErrDuplicateKey = errors.New("storage: record already exists")
	// ErrInvalidInput covers nil records and empty keys.
	ErrInvalidInput = errors.New("storage: invalid record")
)
