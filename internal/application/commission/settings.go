package commission

import (
	"context"
	"fmt"

	"github.com/erp/commission/internal/domain/commission"
)

// SettingsResolver returns the commission settings for a run. A settings
// record stored in the database wins over the file configuration.
type SettingsResolver struct {
	repo     commission.SettingsRepository
	fallback commission.Settings
}

// NewSettingsResolver creates a resolver. repo may be nil.
func NewSettingsResolver(repo commission.SettingsRepository, fallback commission.Settings) *SettingsResolver {
	return &SettingsResolver{repo: repo, fallback: fallback}
}

// Resolve loads and normalizes the active settings
func (r *SettingsResolver) Resolve(ctx context.Context) (commission.Settings, error) {
	if r.repo == nil {
		return r.fallback.Normalize(), nil
	}
	stored, err := r.repo.Load(ctx)
	if err != nil {
		return commission.Settings{}, fmt.Errorf("failed to load commission settings: %w", err)
	}
	if stored == nil {
		return r.fallback.Normalize(), nil
	}
	return stored.Normalize(), nil
}
