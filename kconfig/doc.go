// Package kconfig holds the submission-time configuration of a compilation:
// parallel width overrides, the trace level override and bound submission
// values. Configs are YAML files and can be watched for changes.
package kconfig
