// Seeds the waitlist with fake patients for local development and demos.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	appconfig "github.com/radiancehq/medspa-waitlist/internal/config"
	"github.com/radiancehq/medspa-waitlist/internal/db"
	"github.com/radiancehq/medspa-waitlist/internal/waitlist"
	"github.com/radiancehq/medspa-waitlist/pkg/logging"
)

var services = []string{"botox", "facial", "laser_hair_removal", "microneedling", "chemical_peel", "dermal_filler"}

var tiers = []waitlist.Tier{waitlist.TierPlatinum, waitlist.TierGold, waitlist.TierSilver}

func main() {
	count := flag.Int("count", 25, "number of waitlist entries to create")
	seed := flag.Uint64("seed", 0, "faker seed (0 uses a random seed)")
	flag.Parse()

	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	faker := gofakeit.New(*seed)
	store := waitlist.NewPostgresStore(pool)
	now := time.Now()

	for i := 0; i < *count; i++ {
		waited := time.Duration(faker.IntRange(0, 45*24)) * time.Hour
		start := now.Add(time.Duration(faker.IntRange(1, 48)) * time.Hour)
		entry := &waitlist.Entry{
			ID:                uuid.New(),
			PatientID:         uuid.New(),
			PatientName:       faker.Name(),
			Phone:             faker.Phone(),
			Email:             faker.Email(),
			ServiceID:         services[faker.IntRange(0, len(services)-1)],
			Tier:              tiers[faker.IntRange(0, len(tiers)-1)],
			Priority:          waitlist.PriorityMedium,
			AvailabilityStart: start,
			AvailabilityEnd:   start.Add(time.Duration(faker.IntRange(2, 14*24)) * time.Hour),
			WaitingSince:      now.Add(-waited),
			Status:            waitlist.EntryActive,
			Version:           1,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := store.CreateEntry(ctx, entry); err != nil {
			logger.Error("seed entry failed", "error", err)
			os.Exit(1)
		}
	}

	fmt.Printf("seeded %d waitlist entries\n", *count)
}
