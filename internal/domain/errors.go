package domain

import (
	"context"
	"errors"
)

// Error taxonomy shared by the generation engine. Handlers and the
// orchestrator rely on errors.Is against these sentinels to decide how a
// failure is reported, so provider and client implementations must wrap
// them rather than invent parallel error values.
var (
	// ErrStopped indicates the run's cancellation token fired. It is a
	// user-initiated stop, never reported to callers as a failure. Its
	// message is the fixed text recorded on tasks that were cancelled
	// before they could run.
	ErrStopped = errors.New("generation stopped")

	// ErrProtocol indicates a malformed or contract-violating provider
	// response, such as a success envelope with no result URLs or a
	// create response missing the job identifier.
	ErrProtocol = errors.New("unexpected provider response")

	// ErrTransport indicates the HTTP exchange itself failed: a network
	// error or a non-success status code.
	ErrTransport = errors.New("provider request failed")

	// ErrProvider indicates the provider explicitly reported a failed
	// generation, carrying whatever detail it supplied.
	ErrProvider = errors.New("provider reported failure")
)

// Common validation errors for domain entities.
var (
	ErrEmptyPrompt    = errors.New("prompt cannot be empty")
	ErrEmptyImageData = errors.New("image data cannot be empty")
	ErrInvalidStatus  = errors.New("invalid task status")
)

// IsStopped reports whether err resulted from run cancellation, either
// directly through ErrStopped or through the context errors that
// cancellation surfaces at suspension points.
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled)
}
