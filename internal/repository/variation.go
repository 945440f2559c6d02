package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/streamforge/sidecar/internal/apperr"
	"github.com/streamforge/sidecar/internal/models"
)

// CreateVariation inserts a new Variation under parentAlertID. It fails with
// NotFound if the parent does not exist.
func (r *Repository) CreateVariation(ctx context.Context, v models.Variation) (models.Variation, error) {
	if _, err := r.GetAlert(ctx, v.ParentAlertID); err != nil {
		return models.Variation{}, err
	}

	v.ID = newID()
	ts := now()
	v.CreatedAt = parseTime(ts)
	v.UpdatedAt = v.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO variations (
			id, parent_alert_id, name, condition_type, condition_value, priority, enabled,
			message_template, sound_path, sound_volume, image_path, animation_in, animation_out,
			custom_css, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ParentAlertID, v.Name, v.ConditionType, v.ConditionValue, v.Priority, v.Enabled,
		v.MessageTemplate, v.SoundPath, v.SoundVolume, v.ImagePath, v.AnimationIn, v.AnimationOut,
		v.CustomCSS, ts, ts,
	)
	if err != nil {
		return models.Variation{}, fmt.Errorf("create variation: %w: %v", apperr.Internal, err)
	}
	return v, nil
}

// ListVariationsByParent returns the Variations of parentAlertID, ordered by
// priority descending with created-at ascending as the tie-break.
func (r *Repository) ListVariationsByParent(ctx context.Context, parentAlertID string) ([]models.Variation, error) {
	rows, err := r.db.QueryContext(ctx, variationSelectColumns+`
		FROM variations WHERE parent_alert_id = ?
		ORDER BY priority DESC, created_at ASC`, parentAlertID)
	if err != nil {
		return nil, fmt.Errorf("list variations: %w: %v", apperr.Internal, err)
	}
	defer rows.Close()

	var out []models.Variation
	for rows.Next() {
		v, err := scanVariation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variation: %w: %v", apperr.Internal, err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list variations: %w: %v", apperr.Internal, err)
	}
	return out, nil
}

// VariationPatch carries partial field updates for UpdateVariation.
type VariationPatch struct {
	Name            *string
	ConditionType   *models.ConditionType
	ConditionValue  *string
	Priority        *int
	Enabled         *bool
	MessageTemplate **string
	SoundPath       **string
	SoundVolume     **float64
	ImagePath       **string
	AnimationIn     **string
	AnimationOut    **string
	CustomCSS       **string
}

// UpdateVariation partially updates the Variation identified by id.
func (r *Repository) UpdateVariation(ctx context.Context, id string, patch VariationPatch) (models.Variation, error) {
	set := []string{"updated_at = ?"}
	args := []any{now()}

	add := func(col string, val any) {
		set = append(set, col+" = ?")
		args = append(args, val)
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.ConditionType != nil {
		add("condition_type", *patch.ConditionType)
	}
	if patch.ConditionValue != nil {
		add("condition_value", *patch.ConditionValue)
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.Enabled != nil {
		add("enabled", *patch.Enabled)
	}
	if patch.MessageTemplate != nil {
		add("message_template", *patch.MessageTemplate)
	}
	if patch.SoundPath != nil {
		add("sound_path", *patch.SoundPath)
	}
	if patch.SoundVolume != nil {
		add("sound_volume", *patch.SoundVolume)
	}
	if patch.ImagePath != nil {
		add("image_path", *patch.ImagePath)
	}
	if patch.AnimationIn != nil {
		add("animation_in", *patch.AnimationIn)
	}
	if patch.AnimationOut != nil {
		add("animation_out", *patch.AnimationOut)
	}
	if patch.CustomCSS != nil {
		add("custom_css", *patch.CustomCSS)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE variations SET %s WHERE id = ?`, joinSet(set))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Variation{}, fmt.Errorf("update variation %s: %w: %v", id, apperr.Internal, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return models.Variation{}, fmt.Errorf("variation %s: %w", id, apperr.NotFound)
	}

	row := r.db.QueryRowContext(ctx, variationSelectColumns+` FROM variations WHERE id = ?`, id)
	v, err := scanVariation(row)
	if err != nil {
		return models.Variation{}, fmt.Errorf("get variation %s: %w: %v", id, apperr.Internal, err)
	}
	return *v, nil
}

// DeleteVariation removes the Variation identified by id.
func (r *Repository) DeleteVariation(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM variations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete variation %s: %w: %v", id, apperr.Internal, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("variation %s: %w", id, apperr.NotFound)
	}
	return nil
}

const variationSelectColumns = `
	SELECT id, parent_alert_id, name, condition_type, condition_value, priority, enabled,
	       message_template, sound_path, sound_volume, image_path, animation_in, animation_out,
	       custom_css, created_at, updated_at`

func scanVariation(s scanner) (*models.Variation, error) {
	var v models.Variation
	var createdAt, updatedAt string
	err := s.Scan(
		&v.ID, &v.ParentAlertID, &v.Name, &v.ConditionType, &v.ConditionValue, &v.Priority, &v.Enabled,
		&v.MessageTemplate, &v.SoundPath, &v.SoundVolume, &v.ImagePath, &v.AnimationIn, &v.AnimationOut,
		&v.CustomCSS, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w", apperr.NotFound)
		}
		return nil, err
	}
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updatedAt)
	return &v, nil
}
