package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds indexes that AutoMigrate does not express
func MigrateConstraints(db *gorm.DB) error {
	// Seat map reads filter by zone and status
	err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_seats_zone_status
		ON seats (zone_id, status);
	`).Error
	if err != nil {
		return err
	}

	// Seat ownership lookups when confirming or releasing an order's seats
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_seats_order_status
		ON seats (order_id, status);
	`).Error
	if err != nil {
		return err
	}

	// Audit rows are browsed per order in support tooling
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_seat_status_logs_order
		ON seat_status_logs (order_id);
	`).Error
	if err != nil {
		return err
	}

	// An order settles through at most one completed payment
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_order_completed
		ON payments (order_id) WHERE status = 'COMPLETED';
	`).Error
	if err != nil {
		return err
	}

	// The reclaimer sweeps unpaid orders by status and age
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_orders_status_updated
		ON orders (status, updated_at);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
