package mysql

import (
	"peerlend-backend/internal/domain/backing"
	"peerlend-backend/internal/domain/lender"
	"peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/domain/offer"
	"peerlend-backend/internal/domain/settings"

	"gorm.io/gorm"
)

// Migrate creates or updates every table owned by this service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&loan.LoanRequest{},
		&offer.Offer{},
		&lender.Preference{},
		&lender.OrganizationMember{},
		&backing.Backing{},
		&backing.OutcomeRecord{},
		&backing.Profile{},
		&backing.TrustEvent{},
		&settings.PlatformSetting{},
	)
}
