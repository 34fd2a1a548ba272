package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := &DB{sql: sqldb}
	if err := db.migrate(context.Background()); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			chat_id INTEGER PRIMARY KEY,
			message_id INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := d.sql.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Subscription is a chat message kept in sync with the latest rates.
type Subscription struct {
	ChatID    int64
	MessageID int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertSubscription points chatID at messageID. A chat has at most one
// live message; a newer one replaces the old.
func (d *DB) UpsertSubscription(ctx context.Context, chatID int64, messageID int) error {
	now := time.Now().Unix()
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO subscriptions(chat_id,message_id,created_at,updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET message_id=excluded.message_id, updated_at=excluded.updated_at`,
		chatID, messageID, now, now)
	return err
}

// DeleteSubscription reports whether a row was removed.
func (d *DB) DeleteSubscription(ctx context.Context, chatID int64) (bool, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM subscriptions WHERE chat_id=?`, chatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *DB) GetSubscription(ctx context.Context, chatID int64) (Subscription, bool, error) {
	var s Subscription
	var created, updated int64
	err := d.sql.QueryRowContext(ctx, `SELECT chat_id,message_id,created_at,updated_at FROM subscriptions WHERE chat_id=?`, chatID).
		Scan(&s.ChatID, &s.MessageID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, false, nil
	}
	if err != nil {
		return Subscription{}, false, err
	}
	s.CreatedAt = time.Unix(created, 0)
	s.UpdatedAt = time.Unix(updated, 0)
	return s, true, nil
}

func (d *DB) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT chat_id,message_id,created_at,updated_at FROM subscriptions ORDER BY chat_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subscription
	for rows.Next() {
		var s Subscription
		var created, updated int64
		if err := rows.Scan(&s.ChatID, &s.MessageID, &created, &updated); err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(created, 0)
		s.UpdatedAt = time.Unix(updated, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) SubscriptionCount(ctx context.Context) (int, error) {
	var c int
	if err := d.sql.QueryRowContext(ctx, `SELECT COUNT(1) FROM subscriptions`).Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

func (d *DB) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.sql.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *DB) SetMeta(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO meta(key,value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}
