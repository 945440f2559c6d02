package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/streamforge/sidecar/internal/apperr"
	"github.com/streamforge/sidecar/internal/models"
)

// defaultAlert fills an Alert's unspecified fields from documented defaults
// before insertion.
func defaultAlert(a models.Alert) models.Alert {
	if a.DurationMs == 0 {
		a.DurationMs = 5000
	}
	if a.FontFamily == "" {
		a.FontFamily = "sans-serif"
	}
	if a.FontSize == 0 {
		a.FontSize = 32
	}
	if a.TextColor == "" {
		a.TextColor = "#ffffff"
	}
	if a.SoundVolume == 0 {
		a.SoundVolume = 1.0
	}
	if a.TTSRate == 0 {
		a.TTSRate = 1.0
	}
	if a.TTSPitch == 0 {
		a.TTSPitch = 1.0
	}
	if a.TTSVolume == 0 {
		a.TTSVolume = 1.0
	}
	return a
}

// CreateAlert inserts a new Alert with a server-assigned id and timestamps.
func (r *Repository) CreateAlert(ctx context.Context, a models.Alert) (models.Alert, error) {
	a = defaultAlert(a)
	a.ID = newID()
	ts := now()
	a.CreatedAt = parseTime(ts)
	a.UpdatedAt = a.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (
			id, type, name, enabled, message_template, duration_ms,
			animation_in, animation_out, sound_path, sound_volume, image_path,
			font_family, font_size, text_color, background_color, custom_css,
			min_amount, tts_enabled, tts_voice, tts_rate, tts_pitch, tts_volume,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Name, a.Enabled, a.MessageTemplate, a.DurationMs,
		a.AnimationIn, a.AnimationOut, a.SoundPath, a.SoundVolume, a.ImagePath,
		a.FontFamily, a.FontSize, a.TextColor, a.BackgroundColor, a.CustomCSS,
		a.MinAmount, a.TTSEnabled, a.TTSVoice, a.TTSRate, a.TTSPitch, a.TTSVolume,
		ts, ts,
	)
	if err != nil {
		return models.Alert{}, fmt.Errorf("create alert: %w: %v", apperr.Internal, err)
	}
	return a, nil
}

// GetAlert reads one Alert by id, with its Variations grouped and ordered by
// priority desc then created-at asc.
func (r *Repository) GetAlert(ctx context.Context, id string) (models.Alert, error) {
	row := r.db.QueryRowContext(ctx, alertSelectColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Alert{}, fmt.Errorf("alert %s: %w", id, apperr.NotFound)
		}
		return models.Alert{}, fmt.Errorf("get alert %s: %w: %v", id, apperr.Internal, err)
	}
	variations, err := r.ListVariationsByParent(ctx, id)
	if err != nil {
		return models.Alert{}, err
	}
	a.Variations = variations
	return *a, nil
}

// ListAlerts returns every Alert, each with its Variations grouped and
// ordered, sorted by created-at ascending.
func (r *Repository) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	return r.listAlertsWhere(ctx, "", nil)
}

// ListAlertsByType returns Alerts of the given type, created-at ascending.
func (r *Repository) ListAlertsByType(ctx context.Context, t models.AlertType) ([]models.Alert, error) {
	return r.listAlertsWhere(ctx, "WHERE type = ?", []any{t})
}

// ListEnabledAlerts returns enabled Alerts, created-at ascending. This is the
// query the Rule Resolver uses to fetch resolution candidates.
func (r *Repository) ListEnabledAlerts(ctx context.Context, t models.AlertType) ([]models.Alert, error) {
	return r.listAlertsWhere(ctx, "WHERE type = ? AND enabled = 1", []any{t})
}

func (r *Repository) listAlertsWhere(ctx context.Context, where string, args []any) ([]models.Alert, error) {
	query := alertSelectColumns + ` FROM alerts ` + where + ` ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w: %v", apperr.Internal, err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w: %v", apperr.Internal, err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alerts: %w: %v", apperr.Internal, err)
	}

	for i := range alerts {
		variations, err := r.ListVariationsByParent(ctx, alerts[i].ID)
		if err != nil {
			return nil, err
		}
		alerts[i].Variations = variations
	}
	return alerts, nil
}

// AlertPatch carries partial field updates for UpdateAlert: only fields set
// in the patch are written. updated_at is always bumped, even when the patch
// has no effect.
type AlertPatch struct {
	Name            *string
	Enabled         *bool
	MessageTemplate *string
	DurationMs      *int
	AnimationIn     *string
	AnimationOut    *string
	SoundPath       *string
	SoundVolume     *float64
	ImagePath       *string
	FontFamily      *string
	FontSize        *int
	TextColor       *string
	BackgroundColor **string
	CustomCSS       *string
	MinAmount       **float64
	TTSEnabled      *bool
	TTSVoice        *string
	TTSRate         *float64
	TTSPitch        *float64
	TTSVolume       *float64
}

// UpdateAlert applies patch to the Alert identified by id.
func (r *Repository) UpdateAlert(ctx context.Context, id string, patch AlertPatch) (models.Alert, error) {
	set := []string{"updated_at = ?"}
	args := []any{now()}

	addField := func(col string, val any) {
		set = append(set, col+" = ?")
		args = append(args, val)
	}

	if patch.Name != nil {
		addField("name", *patch.Name)
	}
	if patch.Enabled != nil {
		addField("enabled", *patch.Enabled)
	}
	if patch.MessageTemplate != nil {
		addField("message_template", *patch.MessageTemplate)
	}
	if patch.DurationMs != nil {
		addField("duration_ms", *patch.DurationMs)
	}
	if patch.AnimationIn != nil {
		addField("animation_in", *patch.AnimationIn)
	}
	if patch.AnimationOut != nil {
		addField("animation_out", *patch.AnimationOut)
	}
	if patch.SoundPath != nil {
		addField("sound_path", *patch.SoundPath)
	}
	if patch.SoundVolume != nil {
		addField("sound_volume", *patch.SoundVolume)
	}
	if patch.ImagePath != nil {
		addField("image_path", *patch.ImagePath)
	}
	if patch.FontFamily != nil {
		addField("font_family", *patch.FontFamily)
	}
	if patch.FontSize != nil {
		addField("font_size", *patch.FontSize)
	}
	if patch.TextColor != nil {
		addField("text_color", *patch.TextColor)
	}
	if patch.BackgroundColor != nil {
		addField("background_color", *patch.BackgroundColor)
	}
	if patch.CustomCSS != nil {
		addField("custom_css", *patch.CustomCSS)
	}
	if patch.MinAmount != nil {
		addField("min_amount", *patch.MinAmount)
	}
	if patch.TTSEnabled != nil {
		addField("tts_enabled", *patch.TTSEnabled)
	}
	if patch.TTSVoice != nil {
		addField("tts_voice", *patch.TTSVoice)
	}
	if patch.TTSRate != nil {
		addField("tts_rate", *patch.TTSRate)
	}
	if patch.TTSPitch != nil {
		addField("tts_pitch", *patch.TTSPitch)
	}
	if patch.TTSVolume != nil {
		addField("tts_volume", *patch.TTSVolume)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE alerts SET %s WHERE id = ?`, joinSet(set))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Alert{}, fmt.Errorf("update alert %s: %w: %v", id, apperr.Internal, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return models.Alert{}, fmt.Errorf("alert %s: %w", id, apperr.NotFound)
	}
	return r.GetAlert(ctx, id)
}

// DeleteAlert removes the Alert identified by id. Its Variations are removed
// by the schema's ON DELETE CASCADE.
func (r *Repository) DeleteAlert(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert %s: %w: %v", id, apperr.Internal, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("alert %s: %w", id, apperr.NotFound)
	}
	return nil
}

const alertSelectColumns = `
	SELECT id, type, name, enabled, message_template, duration_ms,
	       animation_in, animation_out, sound_path, sound_volume, image_path,
	       font_family, font_size, text_color, background_color, custom_css,
	       min_amount, tts_enabled, tts_voice, tts_rate, tts_pitch, tts_volume,
	       created_at, updated_at`

func scanAlert(s scanner) (*models.Alert, error) {
	var a models.Alert
	var createdAt, updatedAt string
	err := s.Scan(
		&a.ID, &a.Type, &a.Name, &a.Enabled, &a.MessageTemplate, &a.DurationMs,
		&a.AnimationIn, &a.AnimationOut, &a.SoundPath, &a.SoundVolume, &a.ImagePath,
		&a.FontFamily, &a.FontSize, &a.TextColor, &a.BackgroundColor, &a.CustomCSS,
		&a.MinAmount, &a.TTSEnabled, &a.TTSVoice, &a.TTSRate, &a.TTSPitch, &a.TTSVolume,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// joinSet joins SET clause fragments with ", ".
func joinSet(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
