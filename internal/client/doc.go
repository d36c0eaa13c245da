// ABOUTME: Package documentation for the relay HTTP client
// ABOUTME: Documents the signed envelope convention the client speaks

// Package client implements the relay's wire protocol from the calling
// side. Every request carries the X-API-Key, X-Timestamp, and
// X-Signature headers; the body is a JSON envelope whose encrypted_data
// field holds the encrypted payload. Responses are unwrapped and
// decrypted the same way.
//
// The chat front-end is the primary consumer, but the typed wrappers in
// operations.go make the client usable from any Go tooling that holds
// the shared API key and encryption key.
package client
