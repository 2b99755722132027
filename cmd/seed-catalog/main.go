package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"ticketing-checkout/internal/config"
	"ticketing-checkout/internal/database"
	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

func main() {
	migrateFirst := flag.Bool("migrate", false, "Run pending migrations before seeding")
	flag.Parse()

	fmt.Println("🌱 Seeding demo catalog")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, database.FromConfig(cfg.Database))
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if *migrateFirst {
		if err := db.RunMigrations(); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
	}

	store := repositories.NewStore(db.DB)

	user := &models.User{Email: "demo.buyer@example.com", FirstName: "Demo", LastName: "Buyer"}
	if err := store.Users.Create(ctx, user); err != nil {
		log.Fatal("Failed to create user:", err)
	}
	fmt.Printf("✅ User ready: %s (%s) - ID: %d\n", user.FullName(), user.Email, user.ID)

	start := time.Now().AddDate(0, 1, 0).Truncate(time.Hour)
	event := &models.Event{Title: "Summer Music Festival", StartDate: start, Status: models.StatusPublished}
	if err := store.Events.Create(ctx, event); err != nil {
		log.Fatal("Failed to create event:", err)
	}
	fmt.Printf("✅ Event: %s - ID: %d\n", event.Title, event.ID)

	earlyBirdEnd := time.Now().AddDate(0, 0, 14)
	ticketTypes := []*models.TicketType{
		{Name: "Early Bird", Price: decimal.RequireFromString("35.00"), QuantityAvailable: 100, MinQuantity: 1, MaxQuantity: 4, SaleEnd: &earlyBirdEnd},
		{Name: "General Admission", Price: decimal.RequireFromString("45.00"), QuantityAvailable: 500, MinQuantity: 1, MaxQuantity: 10},
		{Name: "VIP", CategoryID: 2, Price: decimal.RequireFromString("120.00"), QuantityAvailable: 50, MinQuantity: 1, MaxQuantity: 4},
		{Name: "Group of Four", Price: decimal.RequireFromString("160.00"), QuantityAvailable: 25, MinQuantity: 4, MaxQuantity: 8},
	}
	for _, tt := range ticketTypes {
		tt.EventID = event.ID
		tt.IsActive = true
		if err := store.Tickets.CreateTicketType(ctx, tt); err != nil {
			log.Fatalf("Failed to create ticket type %s: %v", tt.Name, err)
		}
	}

	vipOnly := []int{ticketTypes[2].ID}
	limit := 100
	discounts := []*models.Discount{
		{Code: "FIXED15", Type: models.DiscountFixedAmount, AmountOff: decimal.NewFromInt(15)},
		{Code: "SUMMER10", Type: models.DiscountPercentage, PercentOff: decimal.NewFromInt(10), EventID: &event.ID, QuantityAvailable: &limit},
		{Code: "VIPHALF", Type: models.DiscountPercentage, PercentOff: decimal.NewFromInt(50), TicketTypeIDs: vipOnly},
	}
	for _, d := range discounts {
		if err := store.Discounts.Create(ctx, d); err != nil {
			log.Fatalf("Failed to create discount %s: %v", d.Code, err)
		}
		fmt.Printf("✅ Promo code: %s\n", d.Code)
	}

	created, err := store.Tickets.GetTicketTypesByEvent(ctx, event.ID)
	if err != nil {
		log.Fatal("Failed to list ticket types:", err)
	}
	for _, tt := range created {
		fmt.Printf("   🎫 %-18s %8s  %d available (ID: %d)\n", tt.Name, tt.Price.StringFixed(2), tt.Remaining(), tt.ID)
	}

	fmt.Println("🎉 Catalog seeded")
}
