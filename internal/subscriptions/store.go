// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package subscriptions keeps the programs a user follows and which of their
// items have been seen.
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ManuGH/mediathek/internal/persistence/sqlite"
)

var (
	// ErrExists is returned when a subscription for the URN already exists.
	ErrExists = errors.New("subscription already exists")
	// ErrNotFound is returned for unknown subscription ids.
	ErrNotFound = errors.New("subscription not found")
)

// Subscription is a followed program.
type Subscription struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URN         string    `json:"urn"`
	AddedAt     time.Time `json:"addedAt"`
	ImageURL    string    `json:"imageURL,omitempty"`
	UnseenCount int       `json:"unseenCount"`
}

var migrations = []sqlite.Migration{
	{Version: 1, SQL: `
	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		urn TEXT NOT NULL UNIQUE,
		added_at TEXT NOT NULL,
		image_url TEXT,
		unseen_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS item_states (
		subscription_id TEXT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
		item_id TEXT NOT NULL,
		seen BOOLEAN NOT NULL DEFAULT 0,
		seen_at TEXT,
		PRIMARY KEY (subscription_id, item_id)
	);
	CREATE INDEX IF NOT EXISTS idx_item_states_item ON item_states(item_id);
	`},
}

// Store persists subscriptions in SQLite.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger zerolog.Logger
}

// Open opens (and migrates) the database at path. An existing file is
// integrity checked first; problems are logged, not fatal.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		issues, err := sqlite.VerifyIntegrity(ctx, path, sqlite.CheckQuick)
		switch {
		case err != nil:
			logger.Warn().Err(err).Str("path", path).Msg("subscription database integrity check failed to run")
		case issues != nil:
			logger.Error().Strs("issues", issues).Str("path", path).Msg("subscription database integrity problems")
		}
	}

	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("subscriptions: migration failed: %w", err)
	}
	return &Store{db: db, now: time.Now, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert stores a new subscription and assigns its id and AddedAt.
func (s *Store) Insert(ctx context.Context, sub Subscription) (Subscription, error) {
	if _, err := s.ByURN(ctx, sub.URN); err == nil {
		return Subscription{}, fmt.Errorf("%w: %s", ErrExists, sub.URN)
	} else if !errors.Is(err, ErrNotFound) {
		return Subscription{}, err
	}

	sub.ID = uuid.NewString()
	sub.AddedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO subscriptions (id, name, urn, added_at, image_url, unseen_count)
	VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Name, sub.URN, sub.AddedAt.Format(time.RFC3339Nano), nullString(sub.ImageURL), sub.UnseenCount,
	)
	if err != nil {
		return Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}
	return sub, nil
}

// Delete removes a subscription and its item states.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const selectColumns = "SELECT id, name, urn, added_at, image_url, unseen_count FROM subscriptions"

// ByID returns the subscription with id.
func (s *Store) ByID(ctx context.Context, id string) (Subscription, error) {
	return s.one(ctx, selectColumns+" WHERE id = ?", id)
}

// ByURN returns the subscription for a program URN.
func (s *Store) ByURN(ctx context.Context, urn string) (Subscription, error) {
	return s.one(ctx, selectColumns+" WHERE urn = ?", urn)
}

func (s *Store) one(ctx context.Context, query string, arg string) (Subscription, error) {
	sub, err := scan(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, fmt.Errorf("%w: %s", ErrNotFound, arg)
	}
	return sub, err
}

// List returns every subscription sorted by name using German collation.
func (s *Store) List(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	subs := []Subscription{}
	for rows.Next() {
		sub, err := scan(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	c := collate.New(language.German, collate.IgnoreCase)
	sort.SliceStable(subs, func(i, j int) bool {
		return c.CompareString(subs[i].Name, subs[j].Name) < 0
	})
	return subs, nil
}

// URNs returns the URNs of all subscriptions.
func (s *Store) URNs(ctx context.Context) ([]string, error) {
	subs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	urns := make([]string, len(subs))
	for i, sub := range subs {
		urns[i] = sub.URN
	}
	return urns, nil
}

// SetSeen upserts the seen state of an item.
func (s *Store) SetSeen(ctx context.Context, subscriptionID, itemID string, seen bool) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO item_states (subscription_id, item_id, seen, seen_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(subscription_id, item_id) DO UPDATE SET
		seen = excluded.seen,
		seen_at = excluded.seen_at`,
		subscriptionID, itemID, seen, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return fmt.Errorf("%w: %s", ErrNotFound, subscriptionID)
		}
		return fmt.Errorf("set seen: %w", err)
	}
	return nil
}

// SeenItems returns which of itemIDs are marked seen.
func (s *Store) SeenItems(ctx context.Context, subscriptionID string, itemIDs []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(itemIDs))
	if len(itemIDs) == 0 {
		return seen, nil
	}

	args := make([]any, 0, len(itemIDs)+1)
	args = append(args, subscriptionID)
	for _, id := range itemIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")

	rows, err := s.db.QueryContext(ctx,
		"SELECT item_id FROM item_states WHERE subscription_id = ? AND seen = 1 AND item_id IN ("+placeholders+")",
		args...)
	if err != nil {
		return nil, fmt.Errorf("query item states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item state: %w", err)
		}
		seen[id] = true
	}
	return seen, rows.Err()
}

// SetUnseenCount stores the derived unseen count.
func (s *Store) SetUnseenCount(ctx context.Context, id string, n int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE subscriptions SET unseen_count = ? WHERE id = ?", n, id)
	if err != nil {
		return fmt.Errorf("update unseen count: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scan(row rowScanner) (Subscription, error) {
	var (
		sub     Subscription
		addedAt string
		image   sql.NullString
	)
	if err := row.Scan(&sub.ID, &sub.Name, &sub.URN, &addedAt, &image, &sub.UnseenCount); err != nil {
		return Subscription{}, err
	}
	sub.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
	sub.ImageURL = image.String
	return sub, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
