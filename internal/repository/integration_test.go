//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mathisdt/webuntis-fetcher/internal/model"
	"github.com/mathisdt/webuntis-fetcher/internal/repository"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=postgres password=postgres dbname=webuntis_fetcher_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	if err := testDB.AutoMigrate(&model.LessonStatistic{}); err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func testSection(t *testing.T) string {
	t.Helper()
	section := fmt.Sprintf("test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_ = repository.NewStatisticsRepo(testDB).DeleteBySection(context.Background(), section)
	})
	return section
}

// ═══════════════════════════════════════════════════════════
// StatisticsRepository
// ═══════════════════════════════════════════════════════════

func TestStatisticsRepo_UpsertAndList(t *testing.T) {
	repo := repository.NewStatisticsRepo(testDB)
	ctx := context.Background()
	section := testSection(t)

	first := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	second := time.Date(2024, 1, 15, 9, 45, 0, 0, time.UTC)

	err := repo.Upsert(ctx, []model.LessonStatistic{
		{Section: section, Timestamp: second, PlannedSubject: "Math", ActualSubject: "Math"},
		{Section: section, Timestamp: first, PlannedTeacher: "Smith", ActualTeacher: "Jones"},
	})
	if err != nil {
		t.Fatalf("Upsert 失败: %v", err)
	}

	// 同一时间再次写入覆盖旧值
	err = repo.Upsert(ctx, []model.LessonStatistic{
		{Section: section, Timestamp: second, PlannedSubject: "Math", IsCancelled: true, Comment: "krank"},
	})
	if err != nil {
		t.Fatalf("再次 Upsert 失败: %v", err)
	}

	stats, err := repo.ListBySection(ctx, section)
	if err != nil {
		t.Fatalf("ListBySection 失败: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("期望 2 条记录，实际 %d", len(stats))
	}
	if !stats[0].Timestamp.Equal(first) {
		t.Errorf("记录应按时间升序，第一条为 %v", stats[0].Timestamp)
	}
	if !stats[1].IsCancelled || stats[1].ActualSubject != "" || stats[1].Comment != "krank" {
		t.Errorf("覆盖写入失败: %+v", stats[1])
	}
}

func TestStatisticsRepo_SectionsIsolated(t *testing.T) {
	repo := repository.NewStatisticsRepo(testDB)
	ctx := context.Background()
	a, b := testSection(t), testSection(t)

	ts := time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)
	if err := repo.Upsert(ctx, []model.LessonStatistic{{Section: a, Timestamp: ts, ActualSubject: "Art"}}); err != nil {
		t.Fatalf("Upsert 失败: %v", err)
	}

	stats, err := repo.ListBySection(ctx, b)
	if err != nil {
		t.Fatalf("ListBySection 失败: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("不同课表的数据不应混在一起，实际 %d 条", len(stats))
	}
}
