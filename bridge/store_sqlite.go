package bridge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	civicrm_url TEXT NOT NULL DEFAULT '',
	api_key TEXT NOT NULL DEFAULT '',
	site_key TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS form_settings (
	form_id INTEGER PRIMARY KEY,
	enabled INTEGER NOT NULL DEFAULT 0,
	action TEXT NOT NULL DEFAULT '',
	field_mapping TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS transients (
	name TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore keeps settings and transients in a single SQLite file. The
// credentials live in a one-row table.
type SQLiteStore struct {
	db  *sql.DB
	now Clock
}

// OpenSQLiteStore opens (and migrates) the database at path. Use ":memory:"
// for a throwaway store.
func OpenSQLiteStore(path string, now Clock) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &SQLiteStore{db: db, now: now}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) GetCredentials(ctx context.Context) (Credentials, error) {
	var c Credentials
	err := s.db.QueryRowContext(ctx,
		"SELECT civicrm_url, api_key, site_key FROM settings WHERE id = 1",
	).Scan(&c.Endpoint, &c.APIKey, &c.SiteKey)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read settings: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) SaveCredentials(ctx context.Context, creds Credentials) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, civicrm_url, api_key, site_key)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET civicrm_url=excluded.civicrm_url, api_key=excluded.api_key, site_key=excluded.site_key
	`, creds.Endpoint, creds.APIKey, creds.SiteKey)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCredentials(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings"); err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetForm(ctx context.Context, id FormID) (FormSettings, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT form_id, enabled, action, field_mapping, updated_at FROM form_settings WHERE form_id = ?",
		int64(id))
	fs, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return FormSettings{}, ErrNotFound
	}
	if err != nil {
		return FormSettings{}, fmt.Errorf("failed to read form %s settings: %w", id, err)
	}
	return fs, nil
}

func (s *SQLiteStore) SaveForm(ctx context.Context, fs FormSettings) error {
	if fs.FormID == 0 {
		return ErrInvalidFormID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO form_settings (form_id, enabled, action, field_mapping, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(form_id) DO UPDATE SET enabled=excluded.enabled, action=excluded.action,
			field_mapping=excluded.field_mapping, updated_at=excluded.updated_at
	`, int64(fs.FormID), fs.Enabled, fs.Action, fs.FieldMapping, unixNano(fs.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save form %s settings: %w", fs.FormID, err)
	}
	return nil
}

func (s *SQLiteStore) ListForms(ctx context.Context) ([]FormSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT form_id, enabled, action, field_mapping, updated_at FROM form_settings ORDER BY form_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	defer rows.Close()

	var out []FormSettings
	for rows.Next() {
		fs, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteAllForms(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM form_settings")
	if err != nil {
		return 0, fmt.Errorf("failed to delete form settings: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) SetTransient(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode transient %s: %w", key, err)
	}
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixNano()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transients (name, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value=excluded.value, expires_at=excluded.expires_at
	`, key, data, expiresAt)
	return err
}

func (s *SQLiteStore) GetTransient(ctx context.Context, key string, dst any) (bool, error) {
	var (
		data      []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM transients WHERE name = ?", key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if expiresAt != 0 && s.now().UnixNano() >= expiresAt {
		_, _ = s.db.ExecContext(ctx, "DELETE FROM transients WHERE name = ?", key)
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode transient %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) DeleteTransient(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM transients WHERE name = ?", k); err != nil {
			return err
		}
	}
	return nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (FormSettings, error) {
	var (
		fs        FormSettings
		id        int64
		enabled   int64
		updatedAt int64
	)
	if err := row.Scan(&id, &enabled, &fs.Action, &fs.FieldMapping, &updatedAt); err != nil {
		return FormSettings{}, err
	}
	fs.FormID = FormID(id)
	fs.Enabled = enabled != 0
	if updatedAt != 0 {
		fs.UpdatedAt = time.Unix(0, updatedAt).UTC()
	}
	return fs, nil
}
