package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"ticketing-checkout/internal/config"
	"ticketing-checkout/internal/database"
)

func main() {
	var (
		statusFlag = flag.Bool("status", false, "Show migration status")
		upFlag     = flag.Bool("up", false, "Run pending migrations")
		downFlag   = flag.Bool("down", false, "Roll back the most recent migration")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewConnection(context.Background(), database.FromConfig(cfg.Database))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if !*statusFlag && !*upFlag && !*downFlag {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/migrate -status   # Show migration status")
		fmt.Println("  go run ./cmd/migrate -up       # Run pending migrations")
		fmt.Println("  go run ./cmd/migrate -down     # Roll back one migration")
		os.Exit(1)
	}

	migrator, err := database.NewMigrator(db.DB)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	defer migrator.Close()

	switch {
	case *statusFlag:
		status, err := migrator.Status()
		if err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
		if !status.Applied {
			fmt.Println("No migrations applied")
			return
		}
		fmt.Printf("Current version: %d (dirty: %t)\n", status.Version, status.Dirty)
	case *upFlag:
		if err := migrator.Up(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		fmt.Println("All migrations completed successfully!")
	case *downFlag:
		if err := migrator.Down(); err != nil {
			log.Fatalf("Failed to roll back migration: %v", err)
		}
		fmt.Println("Rolled back one migration")
	}
}
