package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/timmy/hearth/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WhitelistRepository stores the set of trusted external domains.
type WhitelistRepository struct {
	db *gorm.DB
}

// NewWhitelistRepository creates a new WhitelistRepository.
func NewWhitelistRepository(db *gorm.DB) *WhitelistRepository {
	return &WhitelistRepository{db: db}
}

// NormalizeDomain lower-cases a domain and strips scheme, path and a leading "www.".
func NormalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if idx := strings.IndexAny(d, "/?#"); idx != -1 {
		d = d[:idx]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}

// ListDomains returns the whitelisted domains in alphabetical order.
func (r *WhitelistRepository) ListDomains(ctx context.Context) ([]string, error) {
	var domains []string
	err := r.db.WithContext(ctx).Model(&domain.WhitelistedDomain{}).Order("domain").Pluck("domain", &domains).Error
	if err != nil {
		return nil, err
	}
	return domains, nil
}

// Add whitelists a domain. Adding an existing domain is a no-op.
func (r *WhitelistRepository) Add(ctx context.Context, d string) (string, error) {
	d = NormalizeDomain(d)
	if d == "" || !strings.Contains(d, ".") {
		return "", domain.ErrInvalidInput
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "domain"}}, DoNothing: true}).
		Create(&domain.WhitelistedDomain{Domain: d}).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", err
	}
	return d, nil
}

// Remove deletes a domain from the whitelist.
func (r *WhitelistRepository) Remove(ctx context.Context, d string) error {
	res := r.db.WithContext(ctx).Where("domain = ?", NormalizeDomain(d)).Delete(&domain.WhitelistedDomain{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Seed inserts domains only when the whitelist is empty, so operator removals survive restarts.
func (r *WhitelistRepository) Seed(ctx context.Context, domains []string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.WhitelistedDomain{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	added := 0
	for _, d := range domains {
		if _, err := r.Add(ctx, d); err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}
