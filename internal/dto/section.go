package dto

import "github.com/mathisdt/webuntis-fetcher/config"

// SectionResponse 课表概要（不含账号密码）
type SectionResponse struct {
	Name          string `json:"name"`
	School        string `json:"school"`
	Person        string `json:"person"`
	Class         string `json:"class,omitempty"`
	Statistics    bool   `json:"statistics"`
	Calendar      bool   `json:"calendar"`
	ForwardsMails bool   `json:"forwards_mails"`
}

// NewSectionResponse 从配置构建
func NewSectionResponse(s *config.SectionConfig) SectionResponse {
	return SectionResponse{
		Name:          s.Name,
		School:        s.School,
		Person:        s.Firstname + " " + s.Lastname,
		Class:         s.Class,
		Statistics:    s.HasStatistics(),
		Calendar:      true,
		ForwardsMails: s.MailTo != "",
	}
}

// ForwardResponse 单个课表的消息转发结果
type ForwardResponse struct {
	Section   string `json:"section"`
	Forwarded int    `json:"forwarded"`
	Error     string `json:"error,omitempty"`
}
