package data

import "errors"

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrReportNotFound is returned when a report is not found.
	ErrReportNotFound = errors.New("report not found")
)
