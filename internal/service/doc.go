// Package service contains the application services that sit between
// the HTTP layer and the engine: batch lifecycle coordination and, in
// the auth subpackage, token issuance and validation.
package service
