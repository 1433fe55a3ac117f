package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the indexes and keys the reservation engine depends on
func MigrateConstraints(db *gorm.DB) error {
	// Partial index serving the expiry sweep: only live reservations are scanned
	err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tickets_reserved_expires
		ON tickets (expires_at)
		WHERE status = 'RESERVED';
	`).Error
	if err != nil {
		return err
	}

	// Newest-first listings per event and per customer
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tickets_event_created
		ON tickets (event_id, created_at DESC);
	`).Error
	if err != nil {
		return err
	}

	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tickets_customer_created
		ON tickets (customer_email, created_at DESC);
	`).Error
	if err != nil {
		return err
	}

	// Every ticket must point at a real ticket type. AutoMigrate runs with
	// foreign keys disabled, so the key is added here once.
	return db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'fk_tickets_ticket_type'
			) THEN
				ALTER TABLE tickets
				ADD CONSTRAINT fk_tickets_ticket_type
				FOREIGN KEY (ticket_type_id) REFERENCES ticket_types (id);
			END IF;
		END $$;
	`).Error
}
