// Package appdesc reads YAML application descriptions into logical graphs.
// It stands in for a real front end in the CLI and in tests.
package appdesc
