package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mathisdt/webuntis-fetcher/config"
	"github.com/mathisdt/webuntis-fetcher/internal/dto"
	"github.com/mathisdt/webuntis-fetcher/internal/service"
	pkgerrors "github.com/mathisdt/webuntis-fetcher/pkg/errors"
	"github.com/mathisdt/webuntis-fetcher/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TimetableHandler 课表相关接口
type TimetableHandler struct {
	cfg *config.Config
	svc service.TimetableService
	now func() time.Time
}

// NewTimetableHandler 创建 TimetableHandler
func NewTimetableHandler(cfg *config.Config, svc service.TimetableService) *TimetableHandler {
	return &TimetableHandler{cfg: cfg, svc: svc, now: time.Now}
}

// Page GET /timetable
// 实时获取所有课表，不写入统计
// 部分课表失败时仍返回页面，失败原因放在 X-Timetable-Errors 头中；
// 没有任何课表成功时返回 502
func (h *TimetableHandler) Page(c *gin.Context) {
	var buf bytes.Buffer
	err := h.svc.RenderPage(c.Request.Context(), &buf, service.PageOptions{Now: h.now()})
	if err != nil {
		if buf.Len() == 0 || errors.Is(err, service.ErrNothingRendered) {
			response.BadGateway(c, err.Error())
			return
		}
		c.Header("X-Timetable-Errors", url.QueryEscape(err.Error()))
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// Calendar GET /calendar/:section
func (h *TimetableHandler) Calendar(c *gin.Context) {
	section := c.Param("section")
	data, err := h.svc.Calendar(c.Request.Context(), section, h.now())
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	setDownloadHeaders(c, section+".ics")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(data))
}

// Statistics GET /statistics/:section
func (h *TimetableHandler) Statistics(c *gin.Context) {
	buf, filename, err := h.svc.StatisticsWorkbook(c.Request.Context(), c.Param("section"))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	setDownloadHeaders(c, filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListSections GET /api/v1/sections
func (h *TimetableHandler) ListSections(c *gin.Context) {
	list := make([]dto.SectionResponse, 0, len(h.cfg.Sections))
	for i := range h.cfg.Sections {
		list = append(list, dto.NewSectionResponse(&h.cfg.Sections[i]))
	}
	response.OK(c, list)
}

func setDownloadHeaders(c *gin.Context, filename string) {
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Header("Cache-Control", "no-cache")
}

func handleTimetableError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSectionNotFound):
		response.NotFound(c, "课表不存在")
	case errors.Is(err, service.ErrStatisticsNotConfigured):
		response.NotFound(c, "该课表未配置统计")
	case errors.Is(err, pkgerrors.ErrNoResultData):
		response.NotFound(c, "本周没有课表数据")
	case errors.Is(err, pkgerrors.ErrPersonNotFound):
		response.NotFound(c, "WebUntis 中找不到该人员")
	case errors.Is(err, service.ErrStatisticsDBUnavailable):
		response.InternalError(c)
	default:
		response.BadGateway(c, err.Error())
	}
}
