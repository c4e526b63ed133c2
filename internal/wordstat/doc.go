// Package wordstat defines core types shared across subsystems and the
// batch connector that drives paced, validated Wordstat API calls.
package wordstat
