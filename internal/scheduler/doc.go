// Package scheduler provides a generic bounded-concurrency runner over
// independent units of work. It guarantees dispatch in input order, at
// most the configured number of units in flight, and results associated
// by input index regardless of completion order.
package scheduler
