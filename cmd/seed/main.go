package main

import (
	"context"
	"fmt"
	"log"

	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/constants"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/tickets"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Seeder struct {
	db   *database.DB
	repo tickets.Repository
}

func main() {
	fmt.Println("🌱 Starting Boxoffice Database Seeder...")

	// Load configuration
	cfg := config.Load()

	// Initialize database (runs migrations)
	db, err := database.InitDB(cfg, logger.New())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{
		db:   db,
		repo: tickets.NewRepository(db.GetPostgreSQL()),
	}

	// Clean database
	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	// Seed data
	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates tickets before the ticket types they reference
func (s *Seeder) CleanDatabase() error {
	for _, table := range []string{"tickets", "ticket_types"} {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := s.db.PostgreSQL.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// SeedAll seeds all required data
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	eventIDs := []uuid.UUID{uuid.New(), uuid.New()}
	for i, eventID := range eventIDs {
		if err := s.SeedTicketTypes(ctx, eventID, i == len(eventIDs)-1); err != nil {
			return fmt.Errorf("failed to seed ticket types for event %s: %w", eventID, err)
		}
	}

	// Drop cached availability so reads see the fresh ledger
	if redisClient := s.db.GetRedis(); redisClient != nil {
		if err := cache.NewService(redisClient).DeletePattern(ctx, constants.PATTERN_INVALIDATE_TICKETS_ALL); err != nil {
			log.Printf("Warning: Failed to clear availability cache: %v", err)
		}
	}

	return nil
}

// SeedTicketTypes creates the standard price tiers for one event. The last
// event gets a single-unit tier for exercising the last-ticket race.
func (s *Seeder) SeedTicketTypes(ctx context.Context, eventID uuid.UUID, withScarceTier bool) error {
	fmt.Printf("  🎫 Seeding ticket types for event %s...\n", eventID)

	tiers := []struct {
		name        string
		description string
		price       string
		quantity    int
		active      bool
	}{
		{"General Admission", "Standing room on the main floor", "49.00", 500, true},
		{"Reserved Seating", "Numbered seats in the lower bowl", "89.50", 200, true},
		{"VIP", "Front section with lounge access", "249.00", 25, true},
		{"Early Bird", "Discounted tier, sales closed", "35.00", 100, false},
	}
	if withScarceTier {
		tiers = append(tiers, struct {
			name        string
			description string
			price       string
			quantity    int
			active      bool
		}{"Meet and Greet", "One backstage pass", "999.00", 1, true})
	}

	for _, tier := range tiers {
		tt := &tickets.TicketType{
			EventID:           eventID,
			Name:              tier.name,
			Description:       tier.description,
			Price:             decimal.RequireFromString(tier.price),
			TotalQuantity:     tier.quantity,
			AvailableQuantity: tier.quantity,
			IsActive:          tier.active,
		}
		if err := s.repo.CreateTicketType(ctx, tt); err != nil {
			return fmt.Errorf("failed to create ticket type %s: %w", tier.name, err)
		}
		fmt.Printf("    ✅ Created ticket type: %s (%s) x%d [%s]\n", tt.Name, tt.Price.StringFixed(2), tt.TotalQuantity, tt.ID)
	}

	return nil
}
