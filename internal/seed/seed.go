// Package seed bootstraps a default tenant for local development.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
)

const (
	defaultTenantName      = "Demo Services"
	defaultTenantSubdomain = "demo"
	defaultTenantEmail     = "owner@demo.local"
)

// EnsureDefaultTenant seeds the demo tenant so a fresh install has an
// account to log into. Existing rows are left untouched.
func EnsureDefaultTenant(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record tenantdomain.Tenant
		err := tx.WithContext(ctx).
			Where("subdomain = ?", defaultTenantSubdomain).
			First(&record).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		trialEnd := now.Add(14 * 24 * time.Hour)
		record = tenantdomain.Tenant{
			ID:             node.Generate(),
			Name:           defaultTenantName,
			Subdomain:      defaultTenantSubdomain,
			Email:          defaultTenantEmail,
			Tier:           tenantdomain.TierBasic,
			Status:         tenantdomain.StatusTrialing,
			OnboardingStep: tenantdomain.OnboardingCreated,
			IsActive:       true,
			TrialEndsAt:    &trialEnd,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.WithContext(ctx).Create(&record).Error
	})
}
