// Package provider defines the Generator boundary between the batch
// engine and external image providers, plus a registry that routes model
// names to the provider responsible for them. Concrete providers live in
// subpackages: gemini (synchronous) and kie (create-job/poll-until-done).
package provider
