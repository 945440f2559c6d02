package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/streamforge/sidecar/internal/apperr"
	"github.com/streamforge/sidecar/internal/models"
)

// CreateTemplate inserts a new, non-built-in Template.
func (r *Repository) CreateTemplate(ctx context.Context, t models.Template) (models.Template, error) {
	t.ID = newID()
	t.IsBuiltin = false
	ts := now()
	t.CreatedAt = parseTime(ts)
	t.UpdatedAt = t.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, description, author, spec, is_builtin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.Author, t.Spec, t.IsBuiltin, ts, ts,
	)
	if err != nil {
		return models.Template{}, fmt.Errorf("create template: %w: %v", apperr.Internal, err)
	}
	return t, nil
}

// GetTemplate reads one Template by id.
func (r *Repository) GetTemplate(ctx context.Context, id string) (models.Template, error) {
	row := r.db.QueryRowContext(ctx, templateSelectColumns+` FROM templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Template{}, fmt.Errorf("template %s: %w", id, apperr.NotFound)
		}
		return models.Template{}, fmt.Errorf("get template %s: %w: %v", id, apperr.Internal, err)
	}
	return *t, nil
}

// ListTemplates returns every Template ordered by name.
func (r *Repository) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := r.db.QueryContext(ctx, templateSelectColumns+` FROM templates ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w: %v", apperr.Internal, err)
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w: %v", apperr.Internal, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w: %v", apperr.Internal, err)
	}
	return out, nil
}

// UpdateTemplate updates name/description/author/spec on a non-built-in
// Template. Attempting to update a built-in template fails with Forbidden
// and does not touch the row.
func (r *Repository) UpdateTemplate(ctx context.Context, id, name, description, author, spec string) (models.Template, error) {
	existing, err := r.GetTemplate(ctx, id)
	if err != nil {
		return models.Template{}, err
	}
	if existing.IsBuiltin {
		return models.Template{}, fmt.Errorf("template %s is built-in: %w", id, apperr.Forbidden)
	}

	ts := now()
	_, err = r.db.ExecContext(ctx, `
		UPDATE templates SET name = ?, description = ?, author = ?, spec = ?, updated_at = ?
		WHERE id = ? AND is_builtin = 0`,
		name, description, author, spec, ts, id,
	)
	if err != nil {
		return models.Template{}, fmt.Errorf("update template %s: %w: %v", id, apperr.Internal, err)
	}
	return r.GetTemplate(ctx, id)
}

// DeleteTemplate removes a non-built-in Template. Attempting to delete a
// built-in template fails with Forbidden and does not touch the row.
func (r *Repository) DeleteTemplate(ctx context.Context, id string) error {
	existing, err := r.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsBuiltin {
		return fmt.Errorf("template %s is built-in: %w", id, apperr.Forbidden)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ? AND is_builtin = 0`, id)
	if err != nil {
		return fmt.Errorf("delete template %s: %w: %v", id, apperr.Internal, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("template %s: %w", id, apperr.NotFound)
	}
	return nil
}

const templateSelectColumns = `SELECT id, name, description, author, spec, is_builtin, created_at, updated_at`

func scanTemplate(s scanner) (*models.Template, error) {
	var t models.Template
	var createdAt, updatedAt string
	err := s.Scan(&t.ID, &t.Name, &t.Description, &t.Author, &t.Spec, &t.IsBuiltin, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}
