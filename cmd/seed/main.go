package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"stagepass/internal/events"
	"stagepass/internal/inventory"
	"stagepass/internal/shared/config"
	"stagepass/internal/shared/database"
	"stagepass/internal/users"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting StagePass Database Seeder...")

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in reverse dependency order
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"tickets",
		"payments",
		"seat_status_logs",
		"order_line_items",
		"orders",
		"temporary_users",
		"seats",
		"zones",
		"events",
		"users",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Exec("SET CONSTRAINTS ALL DEFERRED").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to defer constraints: %w", err)
	}

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	if err := tx.Exec("SET CONSTRAINTS ALL IMMEDIATE").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to restore constraints: %w", err)
	}

	return tx.Commit().Error
}

// SeedAll seeds staff users, events, and their seat inventory
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	if err := s.SeedUsers(); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	eventIDs, err := s.SeedEvents()
	if err != nil {
		return fmt.Errorf("failed to seed events: %w", err)
	}

	if err := s.SeedInventory(eventIDs); err != nil {
		return fmt.Errorf("failed to seed inventory: %w", err)
	}

	// Clear Redis so stale holds and cached catalogs don't survive a reseed
	if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
		log.Printf("Warning: Failed to clear Redis: %v", err)
	}

	return nil
}

// SeedUsers creates the staff accounts guarding the admin surface
func (s *Seeder) SeedUsers() error {
	fmt.Println("  👤 Seeding staff users...")

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("qwerty"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	usersData := []struct {
		firstName string
		lastName  string
		email     string
		role      users.Role
	}{
		{"Admin", "User", "admin@stagepass.app", users.RoleAdmin},
		{"Box", "Office", "boxoffice@stagepass.app", users.RoleStaff},
	}

	for _, userData := range usersData {
		user := users.User{
			ID:        uuid.New(),
			FirstName: userData.firstName,
			LastName:  userData.lastName,
			Email:     userData.email,
			Password:  string(hashedPassword),
			Role:      userData.role,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		if err := s.db.PostgreSQL.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user %s: %w", userData.email, err)
		}

		fmt.Printf("    ✅ Created user: %s (%s)\n", user.Email, user.Role)
	}

	return nil
}

// SeedEvents creates sample events on sale
func (s *Seeder) SeedEvents() ([]uuid.UUID, error) {
	fmt.Println("  🎪 Seeding events...")

	var eventIDs []uuid.UUID

	eventsData := []struct {
		name         string
		ticketPrefix string
		venueName    string
		daysFromNow  int
		status       string
	}{
		{"Midnight Static Tour", "MST", "Orpheum Theatre", 30, "ON_SALE"},
		{"Symphony No. 9 Gala", "SYM9", "Concert Hall East", 45, "ON_SALE"},
		{"Standup Night Live", "SNL", "The Basement Club", 15, "ON_SALE"},
		{"Winter Arena Festival", "WAF", "Northside Arena", 90, "DRAFT"},
	}

	for _, eventData := range eventsData {
		event := events.Event{
			ID:           uuid.New(),
			Name:         eventData.name,
			TicketPrefix: eventData.ticketPrefix,
			VenueName:    eventData.venueName,
			StartsAt:     time.Now().AddDate(0, 0, eventData.daysFromNow),
			Status:       eventData.status,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}

		if err := s.db.PostgreSQL.Create(&event).Error; err != nil {
			return nil, fmt.Errorf("failed to create event %s: %w", event.Name, err)
		}

		eventIDs = append(eventIDs, event.ID)
		fmt.Printf("    ✅ Created event: %s (%s)\n", event.Name, event.Status)
	}

	return eventIDs, nil
}

// SeedInventory creates zones and seats for each event
func (s *Seeder) SeedInventory(eventIDs []uuid.UUID) error {
	fmt.Println("  💺 Seeding zones and seats...")

	zonesData := []struct {
		name     string
		category string
		price    float64
		rows     []string
		perRow   int
	}{
		{"VIP Box", "VIP", 250.0, []string{"A"}, 8},
		{"Floor", "SEATED", 120.0, []string{"B", "C", "D"}, 12},
		{"Balcony", "SEATED", 75.0, []string{"E", "F"}, 14},
		{"Standing", "GENERAL", 45.0, []string{"G"}, 20},
	}

	for _, eventID := range eventIDs {
		for _, zoneData := range zonesData {
			zone := inventory.Zone{
				ID:        uuid.New(),
				EventID:   eventID,
				Name:      zoneData.name,
				Category:  zoneData.category,
				BasePrice: zoneData.price,
				Capacity:  len(zoneData.rows) * zoneData.perRow,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}

			if err := s.db.PostgreSQL.Create(&zone).Error; err != nil {
				return fmt.Errorf("failed to create zone %s: %w", zone.Name, err)
			}

			for _, row := range zoneData.rows {
				if err := s.createSeatsForRow(zone.ID, row, zoneData.perRow, zoneData.price); err != nil {
					return fmt.Errorf("failed to create seats for zone %s row %s: %w", zone.Name, row, err)
				}
			}

			fmt.Printf("    ✅ Created zone: %s (%d seats)\n", zone.Name, zone.Capacity)
		}
	}

	return nil
}

// createSeatsForRow creates the individual seats in one row
func (s *Seeder) createSeatsForRow(zoneID uuid.UUID, row string, seatCount int, price float64) error {
	for i := 1; i <= seatCount; i++ {
		seat := inventory.Seat{
			ID:        uuid.New(),
			ZoneID:    zoneID,
			Row:       row,
			Number:    i,
			Price:     price,
			Status:    inventory.SeatAvailable,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		if err := s.db.PostgreSQL.Create(&seat).Error; err != nil {
			return fmt.Errorf("failed to create seat %s%d: %w", row, i, err)
		}
	}

	return nil
}
