// Package gemini implements the provider boundary against the Gemini
// API using the google.golang.org/genai SDK. Generation is synchronous:
// one model call per requested image.
package gemini
