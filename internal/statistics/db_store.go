package statistics

import (
	"context"

	"github.com/mathisdt/webuntis-fetcher/internal/model"
	"github.com/mathisdt/webuntis-fetcher/internal/repository"
)

// DBStore 统计数据保存在 lesson_statistics 表中，按课表名区分
// 统计数不落库，读取时由记录重新计算
type DBStore struct {
	repo    repository.StatisticsRepository
	section string
}

// NewDBStore 创建 DBStore
func NewDBStore(repo repository.StatisticsRepository, section string) *DBStore {
	return &DBStore{repo: repo, section: section}
}

func (s *DBStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.repo.ListBySection(ctx, s.section)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			Timestamp:      r.Timestamp.UTC(),
			PlannedTeacher: r.PlannedTeacher,
			PlannedSubject: r.PlannedSubject,
			ActualTeacher:  r.ActualTeacher,
			ActualSubject:  r.ActualSubject,
			IsCancelled:    r.IsCancelled,
			Comment:        r.Comment,
		})
	}
	return entries, nil
}

func (s *DBStore) Save(ctx context.Context, entries []Entry, _ Summary) error {
	rows := make([]model.LessonStatistic, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, model.LessonStatistic{
			Section:        s.section,
			Timestamp:      e.Timestamp,
			PlannedTeacher: e.PlannedTeacher,
			PlannedSubject: e.PlannedSubject,
			ActualTeacher:  e.ActualTeacher,
			ActualSubject:  e.ActualSubject,
			IsCancelled:    e.IsCancelled,
			Comment:        e.Comment,
		})
	}
	return s.repo.Upsert(ctx, rows)
}
