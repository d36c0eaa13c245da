// Package store provides persistence for repo-relay's user directory and
// invitation ledger.
//
// The SQLite implementation (modernc.org/sqlite, pure Go) keeps two
// tables: users, the durable authorized/admin membership, and invites,
// the single-use invitation tokens. Invite redemption is a single guarded
// UPDATE so that concurrent redemptions of the same token cannot both
// succeed.
package store
