package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/streamforge/sidecar/internal/apperr"
	"github.com/streamforge/sidecar/internal/models"
)

// GetSetting returns the Setting for key, or (Setting{}, false, nil) if
// absent — the core surface has no "missing setting" error, only a null
// result.
func (r *Repository) GetSetting(ctx context.Context, key string) (models.Setting, bool, error) {
	var s models.Setting
	var updatedAt string
	err := r.db.QueryRowContext(ctx, `SELECT key, value, updated_at FROM settings WHERE key = ?`, key).
		Scan(&s.Key, &s.Value, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Setting{}, false, nil
		}
		return models.Setting{}, false, fmt.Errorf("get setting %s: %w: %v", key, apperr.Internal, err)
	}
	s.UpdatedAt = parseTime(updatedAt)
	return s, true, nil
}

// SetSetting upserts key=value, stamping updated_at.
func (r *Repository) SetSetting(ctx context.Context, key, value string) (models.Setting, error) {
	ts := now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, ts,
	)
	if err != nil {
		return models.Setting{}, fmt.Errorf("set setting %s: %w: %v", key, apperr.Internal, err)
	}
	return models.Setting{Key: key, Value: value, UpdatedAt: parseTime(ts)}, nil
}
