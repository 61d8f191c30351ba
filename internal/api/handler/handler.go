package handler

import (
	"github.com/mathisdt/webuntis-fetcher/config"
	"github.com/mathisdt/webuntis-fetcher/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Timetable *TimetableHandler
	Message   *MessageHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service) *Handler {
	return &Handler{
		Timetable: NewTimetableHandler(cfg, svc.Timetable),
		Message:   NewMessageHandler(cfg, svc.Message),
	}
}

// findSection 按名称查找课表配置
func findSection(cfg *config.Config, name string) *config.SectionConfig {
	for i := range cfg.Sections {
		if cfg.Sections[i].Name == name {
			return &cfg.Sections[i]
		}
	}
	return nil
}
