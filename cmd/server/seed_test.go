package main

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tasknest/internal/db"
	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/service"
)

func setupSeedTestDB(t *testing.T) *service.ItemService {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return service.NewItemService(service.NewStore(gdb))
}

func TestSeedItemsCreatesRecurringVariety(t *testing.T) {
	items := setupSeedTestDB(t)
	ctx := context.Background()
	today := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	n, err := seedItems(ctx, items, today)
	if err != nil {
		t.Fatalf("seedItems returned error: %v", err)
	}
	if n != len(seedData) {
		t.Fatalf("expected %d items, got %d", len(seedData), n)
	}

	patterns := map[model.Pattern]bool{}
	total := 0
	for _, kind := range model.Kinds {
		list, err := items.List(ctx, kind, nil)
		if err != nil {
			t.Fatalf("list %s: %v", kind, err)
		}
		total += len(list)
		for _, item := range list {
			if item.DueDate == "" {
				t.Fatalf("seeded item %q has no due date", item.Title)
			}
			if p, ok := model.ParsePattern(item.RawPattern); ok && p != model.PatternNone {
				patterns[p] = true
			}
		}
	}
	if total != len(seedData) {
		t.Fatalf("expected %d stored items, got %d", len(seedData), total)
	}
	for _, p := range []model.Pattern{model.PatternDaily, model.PatternWeekly, model.PatternMonthly, model.PatternYearly} {
		if !patterns[p] {
			t.Fatalf("expected a %s item in the seed data", p)
		}
	}
}

func TestSeedItemsSkipsNonEmptyDatabase(t *testing.T) {
	items := setupSeedTestDB(t)
	ctx := context.Background()

	if _, err := items.Create(ctx, model.KindTodo, service.ItemInput{Title: "existing"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := seedItems(ctx, items, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("seedItems returned error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no items to be created, got %d", n)
	}
}
