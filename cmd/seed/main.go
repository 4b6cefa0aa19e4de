package main

import (
	"context"
	"fmt"
	"log"

	"fanclub/internal/shared/config"
	"fanclub/internal/shared/constants"
	"fanclub/internal/shared/database"
	"fanclub/internal/shared/middleware"
	"fanclub/internal/storefront/orders"
	"fanclub/pkg/cache"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

const (
	demoClubID = "club-fc-harbour"
	demoUserID = "fan-0001"
	demoEmail  = "fan@harbour.test"
)

type Seeder struct {
	db   *database.DB
	repo orders.Repository
}

func main() {
	fmt.Println("🌱 Starting Fanclub Storefront Seeder...")

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db, repo: orders.NewRepository(db.SQL)}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	token, err := middleware.IssueAccessToken(cfg, demoUserID, demoClubID, demoEmail)
	if err != nil {
		log.Fatalf("Failed to issue demo token: %v", err)
	}
	fmt.Println("\n🎉 Seeding completed! Use these with cmd/fanclient:")
	fmt.Printf("  FANCLUB_CLUB_ID=%s\n", demoClubID)
	fmt.Printf("  FANCLUB_TOKEN=%s\n", token)
}

// CleanDatabase empties the storefront tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []interface{}{
		&orders.SoldSeat{},
		&orders.OrderItem{},
		&orders.Order{},
		&orders.CatalogEntry{},
	}

	return s.db.SQL.Transaction(func(tx *gorm.DB) error {
		for _, model := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clean %T: %w", model, err)
			}
		}
		return nil
	})
}

// SeedAll seeds the catalog and a few sold seats
func (s *Seeder) SeedAll(ctx context.Context) error {
	if err := s.SeedCatalog(ctx); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	if err := s.SeedSoldSeats(ctx); err != nil {
		return fmt.Errorf("failed to seed sold seats: %w", err)
	}

	// holds and cached availability from an earlier run are stale now
	cacheService := cache.NewService(s.db.Redis, nil)
	patterns := []string{
		constants.CACHE_KEY_AVAILABILITY + "*",
		"hold:*", "hold_seats:*", "seat_hold:*", "user_holds:*",
	}
	for _, pattern := range patterns {
		if err := cacheService.DeletePattern(ctx, pattern); err != nil {
			log.Printf("Warning: Failed to clear %s: %v", pattern, err)
		}
	}
	return nil
}

// SeedCatalog creates match tickets and merchandise
func (s *Seeder) SeedCatalog(ctx context.Context) error {
	fmt.Println("  🎟️  Seeding catalog...")

	entries := []orders.CatalogEntry{
		{RefID: "tt-derby-main", Type: orders.ItemTypeTicket, Name: "Derby Day, Main Stand", PriceCents: 4500, EventID: "ev-derby"},
		{RefID: "tt-derby-north", Type: orders.ItemTypeTicket, Name: "Derby Day, North Stand", PriceCents: 3200, EventID: "ev-derby"},
		{RefID: "tt-cup-main", Type: orders.ItemTypeTicket, Name: "Cup Quarter Final", PriceCents: 3800, EventID: "ev-cup-qf"},
		{RefID: "mer-home-shirt", Type: orders.ItemTypeProduct, Name: "Home Shirt", PriceCents: 6500},
		{RefID: "mer-scarf", Type: orders.ItemTypeProduct, Name: "Bar Scarf", PriceCents: 1800},
		{RefID: "mer-mug", Type: orders.ItemTypeProduct, Name: "Crest Mug", PriceCents: 1200},
	}
	if err := s.repo.UpsertCatalogEntries(ctx, entries); err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("    ✅ %s %s (%d)\n", e.Type, e.RefID, e.PriceCents)
	}
	return nil
}

// SeedSoldSeats books a handful of derby seats through a regular order
func (s *Seeder) SeedSoldSeats(ctx context.Context) error {
	fmt.Println("  💺 Seeding sold seats...")

	seatIDs := []string{"MS-A-1", "MS-A-2", "MS-A-3", "MS-B-7"}
	order := &orders.Order{
		UserID:         "fan-seed",
		ClubID:         demoClubID,
		Email:          "season@harbour.test",
		IdempotencyKey: "seed-derby-season",
		RequestHash:    "seed",
		OrderRef:       "FAN-SEED-00000001",
		TotalSeats:     len(seatIDs),
		TotalCents:     4500 * int64(len(seatIDs)),
		Status:         orders.StatusConfirmed,
		Items: []orders.OrderItem{{
			Type:      orders.ItemTypeTicket,
			RefID:     "tt-derby-main",
			Quantity:  len(seatIDs),
			UnitCents: 4500,
			LineCents: 4500 * int64(len(seatIDs)),
		}},
	}
	for _, id := range seatIDs {
		order.Seats = append(order.Seats, orders.SoldSeat{EventID: "ev-derby", SeatID: id})
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return err
	}
	fmt.Printf("    ✅ Sold %d seats for ev-derby (order %s)\n", len(seatIDs), order.OrderRef)
	return nil
}
