// Package config loads the yaml configuration for the devhost harness.
package config
