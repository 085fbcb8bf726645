package keychain

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jlantz/metaci-cli/pkg/database"
)

// Keychain stores service credentials and org configurations locally
type Keychain struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New wraps an already migrated database
func New(db *gorm.DB, logger zerolog.Logger) *Keychain {
	return &Keychain{
		db:     db,
		logger: logger.With().Str("component", "keychain").Logger(),
	}
}

// Open opens the keychain database at path and migrates it
func Open(path string, logger zerolog.Logger) (*Keychain, error) {
	db, err := database.New(database.Config{Path: path})
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(db, logger, &ServiceRecord{}, &OrgRecord{}); err != nil {
		database.Close(db)
		return nil, err
	}

	if err := database.HealthCheck(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("keychain database is not usable: %w", err)
	}

	return New(db, logger), nil
}

// Close releases the database
func (k *Keychain) Close() error {
	return database.Close(k.db)
}

// GetService retrieves a service config by name
func (k *Keychain) GetService(ctx context.Context, name string) (ServiceConfig, error) {
	var rec ServiceRecord
	if err := k.db.WithContext(ctx).First(&rec, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ServiceNotConfiguredError{Name: name}
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	cfg, err := decode(rec.Config)
	if err != nil {
		return nil, err
	}
	return ServiceConfig(cfg), nil
}

// SetService creates or replaces a service config
func (k *Keychain) SetService(ctx context.Context, name string, cfg ServiceConfig) error {
	encoded, err := encode(cfg)
	if err != nil {
		return err
	}

	rec := &ServiceRecord{Name: name, Config: encoded}
	if err := k.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}

	k.logger.Debug().Str("service", name).Msg("Service saved")
	return nil
}

// DeleteService removes a service config
func (k *Keychain) DeleteService(ctx context.Context, name string) error {
	res := k.db.WithContext(ctx).Delete(&ServiceRecord{}, "name = ?", name)
	if res.Error != nil {
		return fmt.Errorf("failed to delete service: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ServiceNotConfiguredError{Name: name}
	}
	return nil
}

// ListServices returns the sorted names of all stored services
func (k *Keychain) ListServices(ctx context.Context) ([]string, error) {
	var names []string
	if err := k.db.WithContext(ctx).
		Model(&ServiceRecord{}).
		Order("name").
		Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return names, nil
}

// GetOrg retrieves an org config by name
func (k *Keychain) GetOrg(ctx context.Context, name string) (*OrgConfig, error) {
	var rec OrgRecord
	if err := k.db.WithContext(ctx).First(&rec, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, OrgNotFoundError{Name: name}
		}
		return nil, fmt.Errorf("failed to get org: %w", err)
	}
	return toOrgConfig(rec)
}

// SetOrg creates or replaces an org config. Marking it default clears the
// flag on every other org.
func (k *Keychain) SetOrg(ctx context.Context, org *OrgConfig) error {
	encoded, err := encode(org.Config)
	if err != nil {
		return err
	}

	return k.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if org.Default {
			if err := tx.Model(&OrgRecord{}).
				Where("name <> ?", org.Name).
				Update("is_default", false).Error; err != nil {
				return fmt.Errorf("failed to clear default org: %w", err)
			}
		}

		rec := &OrgRecord{
			Name:      org.Name,
			Scratch:   org.Scratch,
			IsDefault: org.Default,
			Config:    encoded,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error; err != nil {
			return fmt.Errorf("failed to save org: %w", err)
		}
		return nil
	})
}

// ListOrgs returns the sorted names of all stored orgs
func (k *Keychain) ListOrgs(ctx context.Context) ([]string, error) {
	var names []string
	if err := k.db.WithContext(ctx).
		Model(&OrgRecord{}).
		Order("name").
		Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list orgs: %w", err)
	}
	return names, nil
}

// DeleteOrg removes an org config
func (k *Keychain) DeleteOrg(ctx context.Context, name string) error {
	res := k.db.WithContext(ctx).Delete(&OrgRecord{}, "name = ?", name)
	if res.Error != nil {
		return fmt.Errorf("failed to delete org: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return OrgNotFoundError{Name: name}
	}
	return nil
}

// DefaultOrg returns the org flagged as default, or nil when none is
func (k *Keychain) DefaultOrg(ctx context.Context) (*OrgConfig, error) {
	var rec OrgRecord
	err := k.db.WithContext(ctx).First(&rec, "is_default = ?", true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default org: %w", err)
	}
	return toOrgConfig(rec)
}

// GetSite returns the connected MetaCI site
func (k *Keychain) GetSite(ctx context.Context) (*Site, error) {
	cfg, err := k.GetService(ctx, SiteService)
	if err != nil {
		return nil, err
	}
	return SiteFromConfig(cfg), nil
}

// SetSite stores the connected MetaCI site
func (k *Keychain) SetSite(ctx context.Context, site *Site) error {
	return k.SetService(ctx, SiteService, site.Config())
}

func toOrgConfig(rec OrgRecord) (*OrgConfig, error) {
	cfg, err := decode(rec.Config)
	if err != nil {
		return nil, err
	}
	return &OrgConfig{
		Name:    rec.Name,
		Scratch: rec.Scratch,
		Default: rec.IsDefault,
		Config:  cfg,
	}, nil
}
