package settings

import "time"

// Table: platform_settings
type PlatformSetting struct {
	Key       string    `gorm:"primaryKey;column:setting_key;size:64"`
	Value     string    `gorm:"column:setting_value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PlatformSetting) TableName() string { return "platform_settings" }

// Keys understood by the settings store.
const (
	KeyOfferResponseWindow = "offer_response_window"
	KeyLockThreshold       = "backer_lock_threshold"
	KeyMinAccountAge       = "backer_min_account_age"
	KeyBaseStrength        = "backing_base_strength"
	KeyAutoAcceptEnabled   = "auto_accept_enabled"
	KeySweepBatchSize      = "sweep_batch_size"
)
