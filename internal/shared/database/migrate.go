package database

import (
	"fanclub/internal/storefront/orders"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&orders.CatalogEntry{},
		&orders.Order{},
		&orders.OrderItem{},
		&orders.SoldSeat{},
	)
}
