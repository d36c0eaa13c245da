// Package config loads and validates repo-relay configuration.
//
// Configuration is a YAML file with ${VAR_NAME} environment expansion.
// The security section additionally accepts direct environment overrides
// (RELAY_API_KEY, RELAY_ENCRYPTION_KEY, AUTHORIZED_USERS, ADMIN_USER) so
// secrets never have to live on disk. A missing encryption key fails the
// load outright; a missing API key is generated once and written back to
// the config file with a logged warning.
package config
