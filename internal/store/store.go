// ABOUTME: Store interface and data types for repo-relay persistence
// ABOUTME: Defines User and Invite records and the operations the directory needs

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when adding a chat id that is already authorized.
var ErrDuplicateUser = errors.New("user already exists")

// ErrInviteNotFound is returned when an invite token is unknown.
var ErrInviteNotFound = errors.New("invite not found")

// ErrInviteUsed is returned when an invite has already been redeemed.
var ErrInviteUsed = errors.New("invite already used")

// ErrInviteExpired is returned when an invite is past its expiry.
var ErrInviteExpired = errors.New("invite expired")

// User represents an authorized chat identity. ChatID is the opaque
// identifier issued by the chat platform; admins may issue invites and
// list users.
type User struct {
	ID        string
	ChatID    string
	IsAdmin   bool
	InvitedBy string // chat id of the admin whose invite added this user, empty for seeded users
	CreatedAt time.Time
}

// Invite represents a single-use invitation token issued by an admin.
type Invite struct {
	ID        string
	Token     string
	CreatedBy string // chat id of the issuing admin
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
	UsedBy    string
}

// Store defines the persistence operations for users and invites.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUserByChatID(ctx context.Context, chatID string) (*User, error)
	SetAdmin(ctx context.Context, chatID string, isAdmin bool) error
	ListUsers(ctx context.Context) ([]*User, error)

	// Invites
	CreateInvite(ctx context.Context, invite *Invite) error
	GetInviteByToken(ctx context.Context, token string) (*Invite, error)

	// ConsumeInvite atomically marks the invite identified by token as
	// used by usedBy. It fails with ErrInviteNotFound, ErrInviteUsed, or
	// ErrInviteExpired; under concurrent redemption of the same token
	// exactly one call succeeds.
	ConsumeInvite(ctx context.Context, token, usedBy string) error

	Close() error
}
