package database

import (
	"stagepass/internal/events"
	"stagepass/internal/inventory"
	"stagepass/internal/orders"
	"stagepass/internal/payments"
	"stagepass/internal/tickets"
	"stagepass/internal/users"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&events.Event{},
		&inventory.Zone{},
		&inventory.Seat{},
		&inventory.SeatStatusLog{},
		&orders.TemporaryUser{},
		&orders.Order{},
		&orders.OrderLineItem{},
		&payments.Payment{},
		&tickets.Ticket{},
	)
}
