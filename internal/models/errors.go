package models

import "errors"

// Errors shared by the transports and the scraper. They live here so the
// browser and fetch layers can report them without importing the scraper.
var (
	ErrBlocked     = errors.New("request blocked by bot protection")
	ErrRateLimited = errors.New("rate limited by target")
)

var ErrJobNotFound = errors.New("job not found")
