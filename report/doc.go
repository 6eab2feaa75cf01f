// Package report provides simulation.Sink implementations that log, encode or store
// iteration reports.
package report
