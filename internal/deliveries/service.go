// Package deliveries is the dedup ledger: one row per (user, prompt) pair
// that has ever received a reply. Rows are append-only.
package deliveries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heraldbot/herald/internal/db"
)

// ErrAlreadyDelivered signals that the (user, prompt) pair already has a
// delivery record. It is the expected suppression outcome, not a failure.
var ErrAlreadyDelivered = errors.New("prompt already delivered to user")

// Delivery records the first time a prompt's response was sent to a user.
type Delivery struct {
	ID         string
	UserID     string
	PromptName string
	Trigger    string
	Message    string
	CreatedAt  time.Time
}

// Service provides delivery record insertion and lookup backed by PostgreSQL.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a delivery log service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "deliveries")),
	}
}

const insertDeliveryQuery = `
INSERT INTO deliveries (user_id, prompt_name, trigger_phrase, original_message)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, prompt_name, trigger_phrase, original_message, created_at`

// Record inserts a delivery record for (userID, promptName). It returns
// ErrAlreadyDelivered when the pair already has one; the UNIQUE constraint on
// (user_id, prompt_name) makes this atomic under concurrent attempts, so at
// most one of two racing inserts for the same pair succeeds.
func (s *Service) Record(ctx context.Context, userID, promptName, trigger, message string) (Delivery, error) {
	if s.pool == nil {
		return Delivery{}, fmt.Errorf("delivery log not configured")
	}
	pgUserID, err := db.ParseUUID(userID)
	if err != nil {
		return Delivery{}, fmt.Errorf("invalid user id: %w", err)
	}

	row := s.pool.QueryRow(ctx, insertDeliveryQuery, pgUserID, promptName, trigger, message)
	delivery, err := scanDelivery(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Delivery{}, ErrAlreadyDelivered
		}
		return Delivery{}, fmt.Errorf("record delivery: %w", err)
	}
	return delivery, nil
}

const deliveredQuery = `
SELECT EXISTS (
    SELECT 1 FROM deliveries WHERE user_id = $1 AND prompt_name = $2
)`

// Delivered reports whether the user has already received the prompt.
func (s *Service) Delivered(ctx context.Context, userID, promptName string) (bool, error) {
	if s.pool == nil {
		return false, fmt.Errorf("delivery log not configured")
	}
	pgUserID, err := db.ParseUUID(userID)
	if err != nil {
		return false, fmt.Errorf("invalid user id: %w", err)
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, deliveredQuery, pgUserID, promptName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check delivery: %w", err)
	}
	return exists, nil
}

const listDeliveriesQuery = `
SELECT id, user_id, prompt_name, trigger_phrase, original_message, created_at
FROM deliveries
WHERE user_id = $1 AND prompt_name = $2
ORDER BY created_at`

// ListFor returns the delivery records for (userID, promptName) ordered by
// creation time. The uniqueness constraint means at most one row, but the
// result is a slice so inspection and tests can assert on the count.
func (s *Service) ListFor(ctx context.Context, userID, promptName string) ([]Delivery, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("delivery log not configured")
	}
	pgUserID, err := db.ParseUUID(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	rows, err := s.pool.Query(ctx, listDeliveriesQuery, pgUserID, promptName)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var items []Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("list deliveries: %w", err)
		}
		items = append(items, delivery)
	}
	return items, rows.Err()
}

func scanDelivery(row pgx.Row) (Delivery, error) {
	var (
		id        pgtype.UUID
		userID    pgtype.UUID
		prompt    string
		trigger   string
		message   string
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &userID, &prompt, &trigger, &message, &createdAt); err != nil {
		return Delivery{}, err
	}
	return Delivery{
		ID:         db.UUIDString(id),
		UserID:     db.UUIDString(userID),
		PromptName: prompt,
		Trigger:    trigger,
		Message:    message,
		CreatedAt:  db.TimeFromPg(createdAt),
	}, nil
}
