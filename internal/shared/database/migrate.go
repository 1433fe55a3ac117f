package database

import (
	"boxoffice/internal/tickets"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&tickets.TicketType{},
		&tickets.Ticket{},
	); err != nil {
		return err
	}
	return MigrateConstraints(db)
}
