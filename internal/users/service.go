// Package users persists Discord users seen by the bot, created lazily on
// first contact.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heraldbot/herald/internal/db"
)

// ErrNotFound is returned when no user exists for the given Discord ID.
var ErrNotFound = errors.New("user not found")

// User is a Discord user the bot has seen at least once.
type User struct {
	ID        string
	DiscordID int64
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Service provides user lookup and lazy creation backed by PostgreSQL.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a user service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "users")),
	}
}

const upsertUserQuery = `
INSERT INTO users (discord_id, username)
VALUES ($1, $2)
ON CONFLICT (discord_id) DO UPDATE
SET username = EXCLUDED.username, updated_at = now()
RETURNING id, discord_id, username, created_at, updated_at`

// GetOrCreate returns the user with the given Discord ID, creating the record
// on first contact. The stored username is refreshed to the last-seen value on
// every call. The upsert is a single statement, so concurrent calls for the
// same Discord ID cannot create duplicate rows.
func (s *Service) GetOrCreate(ctx context.Context, discordID int64, username string) (User, error) {
	if s.pool == nil {
		return User{}, fmt.Errorf("user store not configured")
	}
	username = strings.TrimSpace(username)

	row := s.pool.QueryRow(ctx, upsertUserQuery, discordID, username)
	user, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("upsert user %d: %w", discordID, err)
	}
	return user, nil
}

const getUserQuery = `
SELECT id, discord_id, username, created_at, updated_at
FROM users
WHERE discord_id = $1`

// GetByDiscordID returns the user with the given Discord ID, or ErrNotFound.
func (s *Service) GetByDiscordID(ctx context.Context, discordID int64) (User, error) {
	if s.pool == nil {
		return User{}, fmt.Errorf("user store not configured")
	}
	row := s.pool.QueryRow(ctx, getUserQuery, discordID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user %d: %w", discordID, err)
	}
	return user, nil
}

const listUsersQuery = `
SELECT id, discord_id, username, created_at, updated_at
FROM users
ORDER BY created_at`

// List returns all known users ordered by first contact.
func (s *Service) List(ctx context.Context) ([]User, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("user store not configured")
	}
	rows, err := s.pool.Query(ctx, listUsersQuery)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var items []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        pgtype.UUID
		discordID int64
		username  string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &discordID, &username, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	return User{
		ID:        db.UUIDString(id),
		DiscordID: discordID,
		Username:  username,
		CreatedAt: db.TimeFromPg(createdAt),
		UpdatedAt: db.TimeFromPg(updatedAt),
	}, nil
}
