// ABOUTME: Package documentation for the relay HTTP server
// ABOUTME: Describes the exempt/protected route split

// Package server assembles the relay's HTTP surface. Meta routes
// (root, health, docs, schema, capabilities) are exempt from
// authentication; everything else sits behind the gate and speaks the
// encrypted_data envelope convention. Handlers stay thin: decrypt,
// check the caller against the directory, delegate to workspace or
// suggest, encrypt the reply.
package server
