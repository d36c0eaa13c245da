// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/invite persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is created if it doesn't exist, as are parent directories.
// Pass ":memory:" for an ephemeral store in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL for concurrent readers during redemption writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL UNIQUE,
			is_admin INTEGER NOT NULL DEFAULT 0,
			invited_by TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS invites (
			id TEXT PRIMARY KEY,
			token TEXT NOT NULL UNIQUE,
			created_by TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			used_at DATETIME,
			used_by TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_invites_token ON invites(token);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new authorized user.
// Returns ErrDuplicateUser if the chat id is already present.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (id, chat_id, is_admin, invited_by, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.ChatID,
		user.IsAdmin,
		nullString(user.InvitedBy),
		user.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "chat_id", user.ChatID, "is_admin", user.IsAdmin)
	return nil
}

// GetUserByChatID retrieves a user by chat id.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUserByChatID(ctx context.Context, chatID string) (*User, error) {
	query := `
		SELECT id, chat_id, is_admin, invited_by, created_at
		FROM users
		WHERE chat_id = ?
	`
	var user User
	var invitedBy sql.NullString
	var createdAt string

	err := s.db.QueryRowContext(ctx, query, chatID).Scan(
		&user.ID,
		&user.ChatID,
		&user.IsAdmin,
		&invitedBy,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.InvitedBy = invitedBy.String
	user.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &user, nil
}

// SetAdmin updates the admin flag for an existing user.
// Returns ErrNotFound if the chat id is unknown.
func (s *SQLiteStore) SetAdmin(ctx context.Context, chatID string, isAdmin bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_admin = ? WHERE chat_id = ?`, isAdmin, chatID)
	if err != nil {
		return fmt.Errorf("updating admin flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns all authorized users ordered by creation time.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, chat_id, is_admin, invited_by, created_at
		FROM users
		ORDER BY created_at, chat_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var invitedBy sql.NullString
		var createdAt string
		if err := rows.Scan(&user.ID, &user.ChatID, &user.IsAdmin, &invitedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		user.InvitedBy = invitedBy.String
		if user.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// CreateInvite inserts a new invitation token.
func (s *SQLiteStore) CreateInvite(ctx context.Context, invite *Invite) error {
	if invite.ID == "" {
		invite.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = now
	}

	query := `
		INSERT INTO invites (id, token, created_by, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		invite.ID,
		invite.Token,
		invite.CreatedBy,
		invite.CreatedAt.UTC().Format(time.RFC3339),
		invite.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting invite: %w", err)
	}

	s.logger.Info("created invite", "id", invite.ID, "created_by", invite.CreatedBy,
		"expires_at", invite.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}

// GetInviteByToken retrieves an invite by its token string.
// Returns ErrInviteNotFound if the token is unknown.
func (s *SQLiteStore) GetInviteByToken(ctx context.Context, token string) (*Invite, error) {
	query := `
		SELECT id, token, created_by, created_at, expires_at, used_at, used_by
		FROM invites
		WHERE token = ?
	`
	var invite Invite
	var createdAt, expiresAt string
	var usedAt, usedBy sql.NullString

	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&invite.ID,
		&invite.Token,
		&invite.CreatedBy,
		&createdAt,
		&expiresAt,
		&usedAt,
		&usedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying invite: %w", err)
	}

	if invite.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if invite.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if usedAt.Valid {
		at, err := time.Parse(time.RFC3339, usedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing used_at: %w", err)
		}
		invite.UsedAt = &at
	}
	invite.UsedBy = usedBy.String
	return &invite, nil
}

// ConsumeInvite atomically marks an invite as used. The single UPDATE is
// guarded on used_at and expires_at, which prevents TOCTOU races between
// concurrent redemption attempts: at most one caller observes rows==1.
func (s *SQLiteStore) ConsumeInvite(ctx context.Context, token, usedBy string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		UPDATE invites
		SET used_at = ?, used_by = ?
		WHERE token = ?
		  AND used_at IS NULL
		  AND expires_at > ?
	`
	result, err := s.db.ExecContext(ctx, query, now, usedBy, token, now)
	if err != nil {
		return fmt.Errorf("marking invite as used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected > 0 {
		s.logger.Info("invite redeemed", "used_by", usedBy)
		return nil
	}

	// rowsAffected == 0: distinguish unknown, used, and expired
	invite, err := s.GetInviteByToken(ctx, token)
	if err != nil {
		return err
	}
	if invite.UsedAt != nil {
		return ErrInviteUsed
	}
	if !time.Now().Before(invite.ExpiresAt) {
		return ErrInviteExpired
	}
	return fmt.Errorf("consuming invite: update matched no rows")
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
