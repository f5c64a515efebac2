package storage

// Package storage persists generated plan sets and a redistribution
// audit trail.
//
// Drivers:
//   - file: JSON snapshot for plans plus an append-only JSONL audit log
//   - sqlite: single-file database (build with -tags sqlite)
//   - none: storage disabled, all calls return ErrDisabled
