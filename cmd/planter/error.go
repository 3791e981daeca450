package main

import "errors"

var (
	// ErrConflictsFound occurs when a run ends with conflict verdicts in
	// its report.
	ErrConflictsFound = errors.New("existing filesystem state conflicts with the schema")
)
