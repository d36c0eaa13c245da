// ABOUTME: Package documentation for the chat command router
// ABOUTME: Explains the Messenger/Relay split and where guards live

// Package chat routes slash commands from a chat platform to the relay.
// The Router owns the command table; Messenger abstracts outbound
// delivery and Relay abstracts the control server, so the router is
// testable without either.
//
// Authorization is not enforced here. The relay rejects unauthorized
// and non-admin callers, and the router translates those rejections
// into friendly replies. The adminOnly flag on a command only annotates
// help text.
package chat
