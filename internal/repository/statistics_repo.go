package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mathisdt/webuntis-fetcher/internal/model"
)

// StatisticsRepository 课时统计数据访问接口
type StatisticsRepository interface {
	ListBySection(ctx context.Context, section string) ([]model.LessonStatistic, error)
	Upsert(ctx context.Context, stats []model.LessonStatistic) error
	DeleteBySection(ctx context.Context, section string) error
}

type statisticsRepo struct {
	db *gorm.DB
}

// NewStatisticsRepo 创建 StatisticsRepository 实例
func NewStatisticsRepo(db *gorm.DB) StatisticsRepository {
	return &statisticsRepo{db: db}
}

func (r *statisticsRepo) ListBySection(ctx context.Context, section string) ([]model.LessonStatistic, error) {
	var stats []model.LessonStatistic
	err := r.db.WithContext(ctx).
		Where("section = ?", section).
		Order("timestamp ASC").
		Find(&stats).Error
	return stats, err
}

// Upsert 按 (section, timestamp) 插入或覆盖
func (r *statisticsRepo) Upsert(ctx context.Context, stats []model.LessonStatistic) error {
	if len(stats) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "section"}, {Name: "timestamp"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"planned_teacher", "planned_subject",
				"actual_teacher", "actual_subject",
				"is_cancelled", "comment", "updated_at",
			}),
		}).
		CreateInBatches(stats, 200).Error
}

func (r *statisticsRepo) DeleteBySection(ctx context.Context, section string) error {
	return r.db.WithContext(ctx).
		Where("section = ?", section).
		Delete(&model.LessonStatistic{}).Error
}
