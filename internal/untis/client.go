package untis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/internal/model"
	pkgerrors "github.com/mathisdt/webuntis-fetcher/pkg/errors"
	"github.com/mathisdt/webuntis-fetcher/pkg/jwt"
)

// ── WebUntis HTTP 客户端 ─────────────────────────────────────
//
// 会话通过 cookie 保持（登录一次，后续请求复用 cookie jar），
// 消息相关接口额外需要 /api/token/new 颁发的 Bearer Token。
// ─────────────────────────────────────────────────────────────

const (
	defaultTimeout   = 30 * time.Second
	tokenLeeway      = time.Minute
	maxResponseBytes = 64 * 1024 * 1024
	dateLayout       = "2006-01-02"
	restMessagesPath = "/WebUntis/api/rest/view/v1/messages"
)

var (
	ErrLoginFailed      = errors.New("WebUntis 登录失败")
	ErrUnexpectedStatus = errors.New("WebUntis 返回异常状态码")
)

// Credentials 连接一个 WebUntis 学校所需的信息
type Credentials struct {
	Server   string // 例如 https://neilo.webuntis.com
	School   string
	Username string
	Password string
}

// Client 单个学校账号的 WebUntis 客户端，token 缓存由 mu 保护
type Client struct {
	creds  Credentials
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	token *jwt.Token
}

// Option 客户端可选项
type Option func(*Client)

// WithHTTPClient 使用自定义 http.Client；未设置 cookie jar 时自动创建
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient 创建客户端
func NewClient(creds Credentials, logger *zap.Logger, opts ...Option) (*Client, error) {
	c := &Client{
		creds:  creds,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger,
		now:    time.Now,
	}
	c.creds.Server = strings.TrimRight(creds.Server, "/")
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("创建 cookie jar 失败: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Login 打开学校首页获取会话 cookie，然后提交用户名密码
func (c *Client) Login(ctx context.Context) error {
	q := url.Values{"school": {c.creds.School}}
	if _, err := c.do(ctx, http.MethodGet, "/WebUntis/?"+q.Encode(), nil); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	q = url.Values{
		"school":     {c.creds.School},
		"j_username": {c.creds.Username},
		"j_password": {c.creds.Password},
		"token":      {""},
	}
	if _, err := c.do(ctx, http.MethodPost, "/WebUntis/j_spring_security_check?"+q.Encode(), nil); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()

	c.logger.Debug("WebUntis 登录完成",
		zap.String("server", c.creds.Server),
		zap.String("school", c.creds.School),
	)
	return nil
}

// ── 课表 ──

// PageConfig 查询一周课表页面配置（包含可选的人员/班级元素）
func (c *Client) PageConfig(ctx context.Context, classSchedule bool, monday time.Time) (*model.PageConfigResponse, error) {
	q := url.Values{"date": {monday.Format(dateLayout)}}
	if classSchedule {
		q.Set("type", strconv.Itoa(int(model.ElementStudent)))
		q.Set("isMyTimetableSelected", "false")
	} else {
		q.Set("type", strconv.Itoa(int(model.ElementTeacher)))
		q.Set("isMyTimetableSelected", "true")
	}

	var resp model.PageConfigResponse
	if err := c.getJSON(ctx, "/WebUntis/api/public/timetable/weekly/pageconfig?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FindPerson 按名与姓查找元素 ID
func FindPerson(cfg *model.PageConfigResponse, firstname, lastname string) (int, error) {
	for _, e := range cfg.Data.Elements {
		if e.Forename == firstname && e.LongName == lastname {
			return e.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %s %s", pkgerrors.ErrPersonNotFound, firstname, lastname)
}

// WeeklyData 查询一周课表；响应中没有 result 时返回 ErrNoResultData
func (c *Client) WeeklyData(ctx context.Context, classSchedule bool, elementID int, monday time.Time) (*model.WeeklyData, error) {
	q := url.Values{
		"elementId": {strconv.Itoa(elementID)},
		"date":      {monday.Format(dateLayout)},
	}
	if classSchedule {
		q.Set("elementType", strconv.Itoa(int(model.ElementStudent)))
		q.Set("formatId", "1")
	} else {
		q.Set("elementType", strconv.Itoa(int(model.ElementTeacher)))
		q.Set("formatId", "9")
	}

	var resp model.WeeklyDataResponse
	if err := c.getJSON(ctx, "/WebUntis/api/public/timetable/weekly/data?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	weekly := resp.Weekly()
	if weekly == nil {
		return nil, pkgerrors.ErrNoResultData
	}
	return weekly, nil
}

// Timegrid 查询学校课时长度表
func (c *Client) Timegrid(ctx context.Context) ([]model.TimegridRow, error) {
	var resp model.TimegridResponse
	if err := c.getJSON(ctx, "/WebUntis/api/public/timegrid", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Rows, nil
}

// ── 消息 ──

// Token 获取 Bearer Token，未过期时复用
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.token
	c.mu.Unlock()
	if cached != nil && cached.Valid(c.now(), tokenLeeway) == nil {
		return cached.Raw, nil
	}

	body, err := c.do(ctx, http.MethodGet, "/WebUntis/api/token/new", nil)
	if err != nil {
		return "", fmt.Errorf("获取 token 失败: %w", err)
	}
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return "", fmt.Errorf("获取 token 失败: %w", jwt.ErrTokenInvalid)
	}

	tok, err := jwt.Parse(raw)
	if err != nil {
		// 无法解析的 token 仍可使用，只是不缓存
		c.logger.Debug("token 无法解析，不缓存", zap.Error(err))
		return raw, nil
	}
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
	return raw, nil
}

// Messages 查询收件箱
func (c *Client) Messages(ctx context.Context) (*model.MessageList, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	var resp model.MessageList
	if err := c.getJSON(ctx, restMessagesPath, headers, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Message 查询单条消息详情
func (c *Client) Message(ctx context.Context, id int) (*model.MessageDetail, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	var resp model.MessageDetail
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%d", restMessagesPath, id), headers, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AttachmentStorage 查询附件的下载地址
func (c *Client) AttachmentStorage(ctx context.Context, attachmentID string) (*model.AttachmentStorage, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	var resp model.AttachmentStorage
	path := fmt.Sprintf("%s/%s/attachmentstorageurl", restMessagesPath, url.PathEscape(attachmentID))
	if err := c.getJSON(ctx, path, headers, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download 按存储地址下载附件内容，附加存储服务要求的请求头
func (c *Client) Download(ctx context.Context, storage *model.AttachmentStorage) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, storage.DownloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建下载请求失败: %w", err)
	}
	for _, h := range storage.AdditionalHeaders {
		req.Header.Set(h.Key, h.Value)
	}
	return c.send(req)
}

// ConfirmRead 确认已读，返回服务端记录的确认时间
func (c *Client) ConfirmRead(ctx context.Context, id int) (*model.ReadConfirmation, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%d/read-confirmation", restMessagesPath, id), headers)
	if err != nil {
		return nil, err
	}
	var resp model.ReadConfirmation
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析已读确认响应失败: %w", err)
	}
	return &resp, nil
}

// ── 内部方法 ──

func (c *Client) authHeaders(ctx context.Context) (http.Header, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h, nil
}

func (c *Client) getJSON(ctx context.Context, path string, headers http.Header, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析响应失败 %s: %w", stripQuery(path), err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.creds.Server+path, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error 会带上完整 URL（登录请求的查询参数中有密码）
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("请求 %s %s 失败: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxResponseBytes)); err != nil {
		return nil, fmt.Errorf("读取 %s 响应失败: %w", req.URL.Path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s %s HTTP %d", ErrUnexpectedStatus, req.Method, req.URL.Path, resp.StatusCode)
	}
	return buf.Bytes(), nil
}

// stripQuery 日志与错误中不输出查询参数（包含密码）
func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
