// Package domain contains the core entities of the batch generation
// engine: batches, tasks, images, per-image outcomes, and the shared
// error taxonomy. Domain types carry no dependencies on transport,
// storage, or provider packages; those layers depend on this one.
package domain
