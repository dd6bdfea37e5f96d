package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mombiemala/nefeli-web-sub000/config"
)

// ErrNotFound is returned for unknown profile IDs and missing charts.
var ErrNotFound = errors.New("record not found")

type Database struct {
	db *gorm.DB
}

// Open connects to the configured driver and migrates the schema.
func Open(cfg config.DatabaseConfig) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Profile{}, &ChartRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) CreateProfile(ctx context.Context, p *Profile) error {
	return d.db.WithContext(ctx).Create(p).Error
}

func (d *Database) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := d.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (d *Database) ListProfiles(ctx context.Context, limit, offset int) ([]Profile, error) {
	var profiles []Profile
	result := d.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&profiles)
	if result.Error != nil {
		return nil, result.Error
	}
	return profiles, nil
}

// UpdateProfile overwrites an existing profile.
func (d *Database) UpdateProfile(ctx context.Context, p *Profile) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Profile
		if err := tx.Select("id", "created_at").First(&existing, "id = ?", p.ID).Error; err != nil {
			return notFound(err)
		}
		p.CreatedAt = existing.CreatedAt
		p.RefreshFailedAt = nil
		return tx.Save(p).Error
	})
}

// DeleteProfile removes the profile and its cached chart.
func (d *Database) DeleteProfile(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile_id = ?", id).Delete(&ChartRecord{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&Profile{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SaveChart inserts or replaces the chart of rec.ProfileID and clears the
// profile's refresh failure mark.
func (d *Database) SaveChart(ctx context.Context, rec *ChartRecord) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "profile_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"fingerprint", "engine_version", "sun_sign", "moon_sign",
				"rising_sign", "midheaven_sign", "precision", "payload", "computed_at",
			}),
		}).Create(rec).Error
		if err != nil {
			return err
		}
		return tx.Model(&Profile{}).
			Where("id = ?", rec.ProfileID).
			UpdateColumn("refresh_failed_at", gorm.Expr("NULL")).Error
	})
}

// MarkRefreshFailed records that charting the profile failed at the given
// time. StaleProfiles hands out marked profiles after unmarked ones, oldest
// failure first.
func (d *Database) MarkRefreshFailed(ctx context.Context, id string, at time.Time) error {
	result := d.db.WithContext(ctx).
		Model(&Profile{}).
		Where("id = ?", id).
		UpdateColumn("refresh_failed_at", at.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) GetChart(ctx context.Context, profileID string) (*ChartRecord, error) {
	var rec ChartRecord
	if err := d.db.WithContext(ctx).First(&rec, "profile_id = ?", profileID).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// StaleProfiles returns up to limit profiles whose chart is missing, was
// computed from different birth data, or by a different engine version.
// Profiles that recently failed to refresh come last so they cannot starve
// the rest of the batch.
func (d *Database) StaleProfiles(ctx context.Context, engineVersion string, limit int) ([]Profile, error) {
	var profiles []Profile
	result := d.db.WithContext(ctx).
		Model(&Profile{}).
		Select("profiles.*").
		Joins("LEFT JOIN chart_records ON chart_records.profile_id = profiles.id").
		Where("chart_records.id IS NULL OR chart_records.engine_version <> ? OR chart_records.fingerprint <> profiles.fingerprint", engineVersion).
		Order("profiles.refresh_failed_at IS NOT NULL, profiles.refresh_failed_at asc, profiles.updated_at asc").
		Limit(limit).
		Find(&profiles)
	if result.Error != nil {
		return nil, result.Error
	}
	return profiles, nil
}

// CountBySign tallies stored charts per Sun sign.
func (d *Database) CountBySign(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		SunSign string
		Count   int64
	}
	result := d.db.WithContext(ctx).
		Model(&ChartRecord{}).
		Select("sun_sign, COUNT(*) AS count").
		Group("sun_sign").
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.SunSign] = r.Count
	}
	return counts, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
