package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mathisdt/webuntis-fetcher/config"
	"github.com/mathisdt/webuntis-fetcher/internal/dto"
	"github.com/mathisdt/webuntis-fetcher/internal/service"
	"github.com/mathisdt/webuntis-fetcher/pkg/response"
)

// MessageHandler 消息转发接口
type MessageHandler struct {
	cfg *config.Config
	svc service.MessageService
}

// NewMessageHandler 创建 MessageHandler
func NewMessageHandler(cfg *config.Config, svc service.MessageService) *MessageHandler {
	return &MessageHandler{cfg: cfg, svc: svc}
}

// Forward POST /api/v1/messages/forward[?section=name]
// 立即转发未读消息；各课表结果分别返回
func (h *MessageHandler) Forward(c *gin.Context) {
	sections := h.cfg.Sections
	if name := c.Query("section"); name != "" {
		sec := findSection(h.cfg, name)
		if sec == nil {
			response.NotFound(c, "课表不存在")
			return
		}
		sections = []config.SectionConfig{*sec}
	}

	results := make([]dto.ForwardResponse, 0, len(sections))
	for i := range sections {
		n, err := h.svc.Forward(c.Request.Context(), &sections[i])
		res := dto.ForwardResponse{Section: sections[i].Name, Forwarded: n}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	response.OK(c, results)
}
