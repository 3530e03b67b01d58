package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salusa-dev/backend-klinik/internal/catalog"
	"github.com/salusa-dev/backend-klinik/internal/config"
	"github.com/salusa-dev/backend-klinik/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	store := catalog.NewStore(pool)
	for _, item := range seedItems() {
		if err := store.InsertItem(ctx, item); err != nil {
			log.Fatalf("seed %s: %v", item.ID, err)
		}
	}
	log.Printf("seeded %d catalog items", len(seedItems()))
}

func seedItems() []catalog.Item {
	return []catalog.Item{
		{ID: "cbc", Name: "Complete Blood Count", Kind: "service", StandardPrice: 30000, UrgentPrice: 45000, StandardDurationDays: 2, UrgentDurationDays: 1, Active: true},
		{ID: "lipid-profile", Name: "Lipid Profile", Kind: "service", StandardPrice: 60000, UrgentPrice: 90000, StandardDurationDays: 3, UrgentDurationDays: 1, Active: true},
		{ID: "thyroid-panel", Name: "Thyroid Panel", Kind: "service", StandardPrice: 80000, UrgentPrice: 120000, StandardDurationDays: 4, UrgentDurationDays: 2, Active: true},
		{ID: "hba1c", Name: "HbA1c", Kind: "service", StandardPrice: 45000, UrgentPrice: 65000, StandardDurationDays: 2, UrgentDurationDays: 1, Active: true},
		{ID: "urinalysis", Name: "Urinalysis", Kind: "service", StandardPrice: 20000, UrgentPrice: 30000, StandardDurationDays: 1, UrgentDurationDays: 1, Active: true},
		{ID: "vitamin-d", Name: "Vitamin D Total", Kind: "service", StandardPrice: 110000, UrgentPrice: 160000, StandardDurationDays: 5, UrgentDurationDays: 3, Active: true},
		{ID: "gloves-nitrile", Name: "Nitrile Gloves (box)", Kind: "product", TaxRateBps: 1200, Active: true},
		{ID: "syringe-5ml", Name: "Syringe 5ml (pack)", Kind: "product", TaxRateBps: 1200, Active: true},
		{ID: "glucometer-strips", Name: "Glucometer Strips", Kind: "product", TaxRateBps: 1800, Active: true},
		{ID: "sanitizer-500", Name: "Hand Sanitizer 500ml", Kind: "product", TaxRateBps: 1800, Active: true},
	}
}
