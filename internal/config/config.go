// Package config contains utility structs/functions and types
// for validating the configurations across the library.
package config

// Config defines the minimal interface for a configuration
// in order to be validated.
type Config interface {
	// Validate checks the configuration. Invalid values are replaced
	// by their fallback and reported to the anomaly collector.
	Validate(ac *AnomalyCollector)
}
