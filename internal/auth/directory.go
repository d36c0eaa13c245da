// ABOUTME: User directory and invitation ledger over the persistent store
// ABOUTME: Tracks authorized/admin chat identities and single-use invite tokens

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/repo-relay/internal/store"
)

// ErrForbidden is returned when a caller lacks the privilege for an
// admin-only operation.
var ErrForbidden = errors.New("forbidden")

// InviteTTL is how long an invitation token stays redeemable.
const InviteTTL = 24 * time.Hour

// inviteTokenBytes is the random length of an invite token before
// URL-safe base64 encoding.
const inviteTokenBytes = 16

// Directory owns the in-memory view of authorized and admin chat
// identities and the read/write discipline against the backing store.
// Lookups are lock-guarded set membership; mutations are serialized by
// the mutex on top of the store's atomic statements.
type Directory struct {
	store  store.Store
	logger *slog.Logger

	mu         sync.RWMutex
	authorized map[string]bool
	admins     map[string]bool
}

// NewDirectory loads existing membership from the store and folds in the
// configured seed users. Configured admins are always authorized; a
// previously non-admin user named in the admin seed is promoted durably.
func NewDirectory(ctx context.Context, st store.Store, authorized, admins []string) (*Directory, error) {
	d := &Directory{
		store:      st,
		logger:     slog.Default().With("component", "directory"),
		authorized: make(map[string]bool),
		admins:     make(map[string]bool),
	}

	users, err := st.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	for _, u := range users {
		d.authorized[u.ChatID] = true
		if u.IsAdmin {
			d.admins[u.ChatID] = true
		}
	}

	for _, chatID := range authorized {
		if chatID == "" {
			continue
		}
		if err := d.seedUser(ctx, chatID, false); err != nil {
			return nil, err
		}
	}
	for _, chatID := range admins {
		if chatID == "" {
			continue
		}
		if err := d.seedUser(ctx, chatID, true); err != nil {
			return nil, err
		}
	}

	d.logger.Info("directory loaded",
		"authorized", len(d.authorized), "admins", len(d.admins))
	return d, nil
}

func (d *Directory) seedUser(ctx context.Context, chatID string, admin bool) error {
	err := d.store.CreateUser(ctx, &store.User{ChatID: chatID, IsAdmin: admin})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateUser):
		if admin && !d.admins[chatID] {
			if err := d.store.SetAdmin(ctx, chatID, true); err != nil {
				return fmt.Errorf("promoting seeded admin %s: %w", chatID, err)
			}
		}
	default:
		return fmt.Errorf("seeding user %s: %w", chatID, err)
	}

	d.authorized[chatID] = true
	if admin {
		d.admins[chatID] = true
	}
	return nil
}

// IsAuthorized reports whether the chat identity may issue commands.
func (d *Directory) IsAuthorized(ctx context.Context, chatID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.authorized[chatID]
}

// IsAdmin reports whether the chat identity may issue admin commands.
func (d *Directory) IsAdmin(ctx context.Context, chatID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.admins[chatID]
}

// GenerateInvite creates a single-use invitation token valid for
// InviteTTL. Non-admin requesters get ErrForbidden and no mutation.
func (d *Directory) GenerateInvite(ctx context.Context, requester string) (string, error) {
	if !d.IsAdmin(ctx, requester) {
		return "", ErrForbidden
	}

	raw := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating invite token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	invite := &store.Invite{
		Token:     token,
		CreatedBy: requester,
		ExpiresAt: time.Now().UTC().Add(InviteTTL),
	}
	if err := d.store.CreateInvite(ctx, invite); err != nil {
		return "", fmt.Errorf("storing invite: %w", err)
	}
	return token, nil
}

// RedeemInvite atomically consumes the token and authorizes newID.
// An unknown, used, or expired token returns false without mutation;
// this is an expected outcome, not an error. Redemption never grants
// admin rights.
func (d *Directory) RedeemInvite(ctx context.Context, token, newID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.store.ConsumeInvite(ctx, token, newID)
	switch {
	case errors.Is(err, store.ErrInviteNotFound),
		errors.Is(err, store.ErrInviteUsed),
		errors.Is(err, store.ErrInviteExpired):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("consuming invite: %w", err)
	}

	invite, err := d.store.GetInviteByToken(ctx, token)
	if err != nil {
		return false, fmt.Errorf("loading consumed invite: %w", err)
	}

	err = d.store.CreateUser(ctx, &store.User{
		ChatID:    newID,
		InvitedBy: invite.CreatedBy,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateUser) {
		return false, fmt.Errorf("authorizing user: %w", err)
	}

	d.authorized[newID] = true
	d.logger.Info("user joined via invite", "chat_id", newID, "invited_by", invite.CreatedBy)
	return true, nil
}

// ListUsers returns the durable membership. Admin-only.
func (d *Directory) ListUsers(ctx context.Context, requester string) ([]*store.User, error) {
	if !d.IsAdmin(ctx, requester) {
		return nil, ErrForbidden
	}
	return d.store.ListUsers(ctx)
}
