package names

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/mathisdt/webuntis-fetcher/internal/timetable"
)

// ── 教师全名解析器注册表 ─────────────────────────────────────
//
// 配置中通过名字选择解析器（teacher_fullname_resolver），
// 所有实现在启动前注册，不支持按名字动态执行任意代码。
// ─────────────────────────────────────────────────────────────

var ErrUnknownResolver = errors.New("未知的教师全名解析器")

// Config 创建解析器所需的参数
type Config struct {
	Static     map[string]string // static 解析器使用的缩写 → 全名
	HTTPClient *http.Client      // 需要抓取网页的解析器使用
	URL        string            // 覆盖抓取地址（测试用）
}

// Factory 创建解析器
type Factory func(ctx context.Context, cfg Config) (timetable.NameResolver, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{
		"identity":     newIdentity,
		"static":       newStatic,
		"kks_hannover": newKKSHannover,
	}
)

// Register 注册解析器，同名覆盖
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Names 已注册的解析器名称（升序）
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	result := make([]string, 0, len(registry))
	for n := range registry {
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}

// New 按名字创建解析器
func New(ctx context.Context, name string, cfg Config) (timetable.NameResolver, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResolver, name)
	}
	return f(ctx, cfg)
}

// Static 固定映射；没有映射或映射为空时返回空字符串
type Static map[string]string

// FullName 实现 timetable.NameResolver
func (s Static) FullName(short string) string {
	return s[short]
}

type identity struct{}

func (identity) FullName(string) string { return "" }

func newIdentity(context.Context, Config) (timetable.NameResolver, error) {
	return identity{}, nil
}

func newStatic(_ context.Context, cfg Config) (timetable.NameResolver, error) {
	return Static(cfg.Static), nil
}
