// Package uid generates identifiers: time-ordered int64 row keys and
// UUID strings for token and correlation ids.
package uid

// NumberID generates numeric identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}
