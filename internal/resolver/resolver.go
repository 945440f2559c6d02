// Package resolver implements the Rule Resolver: a deterministic function
// over the Config Repository that turns (event type, facts) into a resolved
// AlertSpec by matching the best Variation and merging it onto its parent
// Alert.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/streamforge/sidecar/internal/models"
)

// alertLister and variationLister narrow the Config Repository to what
// Resolve needs, so tests can substitute an in-memory fake without spinning
// up a Store.
type alertLister interface {
	ListEnabledAlerts(ctx context.Context, t models.AlertType) ([]models.Alert, error)
}

type variationLister interface {
	ListVariationsByParent(ctx context.Context, parentAlertID string) ([]models.Variation, error)
}

// Repository is the subset of *repository.Repository the Resolver depends
// on.
type Repository interface {
	alertLister
	variationLister
}

// Resolver evaluates Facts against configured Alerts and Variations.
type Resolver struct {
	repo Repository
}

// New builds a Resolver over repo.
func New(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the best-matching AlertSpec for eventType and facts, or nil
// if no enabled Alert passes its gate. Candidates are evaluated in
// created-at ascending order; the first candidate whose min-amount gate
// passes wins outright, even if none of its Variations match. A candidate
// that fails its gate is skipped without evaluating its Variations. A
// candidate's enabled Variations are tried in priority-descending order,
// ties broken by created-at ascending.
func (r *Resolver) Resolve(ctx context.Context, eventType models.AlertType, facts models.Facts) (*models.AlertSpec, error) {
	candidates, err := r.repo.ListEnabledAlerts(ctx, eventType)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", eventType, err)
	}

	for _, alert := range candidates {
		if alert.MinAmount != nil && facts.Amount != nil && *facts.Amount < *alert.MinAmount {
			continue
		}

		variations, err := r.repo.ListVariationsByParent(ctx, alert.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: load variations for %s: %w", eventType, alert.ID, err)
		}
		variations = append([]models.Variation(nil), variations...)
		sort.SliceStable(variations, func(i, j int) bool {
			if variations[i].Priority != variations[j].Priority {
				return variations[i].Priority > variations[j].Priority
			}
			return variations[i].CreatedAt.Before(variations[j].CreatedAt)
		})

		spec := specFromAlert(alert)
		for _, v := range variations {
			if !v.Enabled {
				continue
			}
			if matches(v, facts) {
				merged := mergeVariation(spec, v)
				return &merged, nil
			}
		}
		return &spec, nil
	}

	return nil, nil
}

// matches evaluates exactly the three documented condition kinds. Any other
// kind never matches.
func matches(v models.Variation, facts models.Facts) bool {
	switch v.ConditionType {
	case models.ConditionTier:
		return facts.Tier == v.ConditionValue
	case models.ConditionAmount:
		if facts.Amount == nil {
			return false
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(v.ConditionValue), 64)
		if err != nil {
			return false
		}
		return *facts.Amount >= threshold
	case models.ConditionCustom:
		return facts.CustomValue == v.ConditionValue
	default:
		return false
	}
}

// specFromAlert projects a parent Alert into its unmodified AlertSpec form.
func specFromAlert(a models.Alert) models.AlertSpec {
	return models.AlertSpec{
		AlertConfigID:   a.ID,
		Type:            a.Type,
		MessageTemplate: a.MessageTemplate,
		DurationMs:      a.DurationMs,
		AnimationIn:     a.AnimationIn,
		AnimationOut:    a.AnimationOut,
		SoundPath:       a.SoundPath,
		SoundVolume:     a.SoundVolume,
		ImagePath:       a.ImagePath,
		FontFamily:      a.FontFamily,
		FontSize:        a.FontSize,
		TextColor:       a.TextColor,
		BackgroundColor: a.BackgroundColor,
		CustomCSS:       a.CustomCSS,
		TTSEnabled:      a.TTSEnabled,
		TTSVoice:        a.TTSVoice,
		TTSRate:         a.TTSRate,
		TTSPitch:        a.TTSPitch,
		TTSVolume:       a.TTSVolume,
	}
}

// mergeVariation overlays v's documented override fields onto spec, copying
// first so neither the parent projection nor v is mutated, and attaches
// diagnostic _variationId/_variationName fields.
func mergeVariation(spec models.AlertSpec, v models.Variation) models.AlertSpec {
	merged := spec

	if v.MessageTemplate != nil {
		merged.MessageTemplate = *v.MessageTemplate
	}
	if v.SoundPath != nil {
		merged.SoundPath = *v.SoundPath
	}
	if v.SoundVolume != nil {
		merged.SoundVolume = *v.SoundVolume
	}
	if v.ImagePath != nil {
		merged.ImagePath = *v.ImagePath
	}
	if v.AnimationIn != nil {
		merged.AnimationIn = *v.AnimationIn
	}
	if v.AnimationOut != nil {
		merged.AnimationOut = *v.AnimationOut
	}
	if v.CustomCSS != nil {
		merged.CustomCSS = *v.CustomCSS
	}

	id, name := v.ID, v.Name
	merged.VariationID = &id
	merged.VariationName = &name
	return merged
}
