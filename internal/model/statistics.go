package model

import "time"

// LessonStatistic 单节课的计划/实际情况记录
// 以 (section, timestamp) 唯一；空字符串表示无数据
type LessonStatistic struct {
	Section        string    `gorm:"primaryKey;type:varchar(100)" json:"section"`
	Timestamp      time.Time `gorm:"primaryKey"                   json:"timestamp"`
	PlannedTeacher string    `gorm:"type:varchar(255)"            json:"planned_teacher"`
	PlannedSubject string    `gorm:"type:varchar(255)"            json:"planned_subject"`
	ActualTeacher  string    `gorm:"type:varchar(255)"            json:"actual_teacher"`
	ActualSubject  string    `gorm:"type:varchar(255)"            json:"actual_subject"`
	IsCancelled    bool      `gorm:"not null;default:false"       json:"is_cancelled"`
	Comment        string    `gorm:"type:text"                    json:"comment"`
	BaseModel
}

// TableName 指定表名
func (LessonStatistic) TableName() string {
	return "lesson_statistics"
}
