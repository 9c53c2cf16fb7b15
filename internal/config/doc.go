// Package config defines the application configuration and loads it
// from an optional YAML file plus ATELIER_-prefixed environment
// variables, validating the result before the server starts.
package config
