package mysql

import (
	"context"
	"time"

	settingsDomain "peerlend-backend/internal/domain/settings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository struct{ db *gorm.DB }

func NewSettingsRepository(db *gorm.DB) *SettingsRepository { return &SettingsRepository{db: db} }

func (r *SettingsRepository) List(ctx context.Context) ([]settingsDomain.PlatformSetting, error) {
	var out []settingsDomain.PlatformSetting
	res := r.db.WithContext(ctx).Order("setting_key ASC").Find(&out)
	return out, res.Error
}

func (r *SettingsRepository) Put(ctx context.Context, key, value string) error {
	row := settingsDomain.PlatformSetting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
		}).
		Create(&row).Error
}
