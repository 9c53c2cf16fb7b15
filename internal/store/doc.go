// Package store defines the persistence interfaces and shared error
// taxonomy for the data layer. Concrete implementations live under
// internal/platform.
package store
